package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/metrics"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
)

var errNoChange = errors.New("no change")

type JoinResult struct {
	Session    domain.SessionView
	Member     domain.Member
	JustFilled bool
}

// AdmissionController serializes joins and leaves per session and hands a
// session to settlement exactly once, when the join that fills it commits.
type AdmissionController struct {
	registry   *SessionRegistry
	settlement *SettlementEngine
	runner     *settlementRunner
	inline     bool
	clock      ports.Clock
	logger     logrus.FieldLogger
	metrics    *metrics.Recorder
}

func NewAdmissionController(
	registry *SessionRegistry,
	settlement *SettlementEngine,
	clock ports.Clock,
	logger logrus.FieldLogger,
	recorder *metrics.Recorder,
) *AdmissionController {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &AdmissionController{
		registry:   registry,
		settlement: settlement,
		runner:     newSettlementRunner(),
		clock:      clock,
		logger:     logging.OrDiscard(logger),
		metrics:    recorder,
	}
}

// SettleInline makes the filling Join settle before returning.
func (c *AdmissionController) SettleInline(inline bool) {
	c.inline = inline
}

func (c *AdmissionController) Join(ctx context.Context, id domain.SessionID, member domain.Member) (JoinResult, error) {
	member.ID = domain.MemberID(strings.TrimSpace(string(member.ID)))
	if member.ID == "" {
		member.ID = domain.MemberID(uuid.NewString())
	}
	member.DisplayName = strings.TrimSpace(member.DisplayName)

	var (
		justFilled bool
		joined     domain.Member
	)
	view, err := c.registry.WithSession(ctx, id, func(session *domain.Session) error {
		justFilled = false
		filled, err := session.Join(member, c.clock.Now())
		if err != nil {
			return err
		}
		justFilled = filled
		joined = session.Members[len(session.Members)-1]
		return nil
	})
	if err != nil {
		c.metrics.Join(resultLabel(err))
		return JoinResult{}, fmt.Errorf("join session: %w", err)
	}
	c.metrics.Join(resultOK)

	c.logger.WithFields(logrus.Fields{
		"session_id": id,
		"member_id":  joined.ID,
		"players":    view.PlayerCount,
		"capacity":   view.Capacity,
	}).Info("member joined")

	result := JoinResult{Session: view, Member: joined, JustFilled: justFilled}
	if !justFilled {
		return result, nil
	}

	if c.dispatch(ctx, id) {
		settled, err := c.registry.Get(id)
		if err == nil {
			result.Session = settled
		}
	}

	return result, nil
}

func (c *AdmissionController) Leave(ctx context.Context, id domain.SessionID, memberID domain.MemberID) (domain.SessionView, error) {
	view, err := c.registry.WithSession(ctx, id, func(session *domain.Session) error {
		removed, err := session.Leave(memberID)
		if err != nil {
			return err
		}
		if !removed {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		c.metrics.Leave("absent")
		return c.registry.Get(id)
	}
	if err != nil {
		c.metrics.Leave(resultLabel(err))
		return domain.SessionView{}, fmt.Errorf("leave session: %w", err)
	}
	c.metrics.Leave(resultOK)

	c.logger.WithFields(logrus.Fields{
		"session_id": id,
		"member_id":  memberID,
		"players":    view.PlayerCount,
	}).Info("member left")

	return view, nil
}

// dispatch starts settlement and reports whether it already finished.
func (c *AdmissionController) dispatch(ctx context.Context, id domain.SessionID) bool {
	settleCtx := context.WithoutCancel(ctx)
	if c.inline {
		c.settle(settleCtx, id)
		return true
	}
	if c.runner.Go(func() { c.settle(settleCtx, id) }) {
		return false
	}

	// Runner is closing: settle here so the session does not stay Filled.
	c.settle(settleCtx, id)
	return true
}

func (c *AdmissionController) settle(ctx context.Context, id domain.SessionID) {
	if _, err := c.settlement.Settle(ctx, id); err != nil {
		c.logger.WithField("session_id", id).WithError(err).Error("settle session")
	}
}

// Drain waits for in-flight settlements.
func (c *AdmissionController) Drain(ctx context.Context) error {
	return c.runner.Wait(ctx)
}

// Close stops dispatching in the background and waits for in-flight settlements.
func (c *AdmissionController) Close(ctx context.Context) error {
	return c.runner.CloseAndWait(ctx)
}

const resultOK = "ok"

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionClosed):
		return "closed"
	case errors.Is(err, domain.ErrSessionFull):
		return "full"
	case errors.Is(err, domain.ErrSessionNotOpen):
		return "not_open"
	case errors.Is(err, domain.ErrInvalidMember):
		return "invalid"
	case errors.Is(err, domain.ErrRevisionConflict):
		return "conflict"
	default:
		return "error"
	}
}
