package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/metrics"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAvailabilityTimeout = 5 * time.Second
	DefaultReservationTimeout  = 10 * time.Second
)

const (
	callCheck   = "check"
	callReserve = "reserve"
	callCancel  = "cancel"
	callRelease = "release"
)

type SettlementConfig struct {
	AvailabilityTimeout time.Duration
	ReservationTimeout  time.Duration
}

func (c SettlementConfig) withDefaults() SettlementConfig {
	if c.AvailabilityTimeout <= 0 {
		c.AvailabilityTimeout = DefaultAvailabilityTimeout
	}
	if c.ReservationTimeout <= 0 {
		c.ReservationTimeout = DefaultReservationTimeout
	}
	return c
}

// settlingWindow is the longest a settlement can take: the check, the
// reservation and one compensating call, each bounded by its timeout.
func (c SettlementConfig) settlingWindow() time.Duration {
	return c.AvailabilityTimeout + 2*c.ReservationTimeout
}

// SettlementEngine checks court availability for a filled session, reserves
// the courts it needs, and applies the all-or-nothing result. It never retries.
type SettlementEngine struct {
	registry     *SessionRegistry
	availability ports.AvailabilityClient
	reservations ports.ReservationClient
	config       SettlementConfig
	clock        ports.Clock
	logger       logrus.FieldLogger
	metrics      *metrics.Recorder
}

func NewSettlementEngine(
	registry *SessionRegistry,
	availability ports.AvailabilityClient,
	reservations ports.ReservationClient,
	config SettlementConfig,
	clock ports.Clock,
	logger logrus.FieldLogger,
	recorder *metrics.Recorder,
) *SettlementEngine {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SettlementEngine{
		registry:     registry,
		availability: availability,
		reservations: reservations,
		config:       config.withDefaults(),
		clock:        clock,
		logger:       logging.OrDiscard(logger),
		metrics:      recorder,
	}
}

// Settle runs the verify-then-commit transaction for a Filled session.
func (e *SettlementEngine) Settle(ctx context.Context, id domain.SessionID) (domain.Outcome, error) {
	started := time.Now()

	view, err := e.registry.Get(id)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("settle session: %w", err)
	}
	if view.Status != domain.StatusFilled {
		return domain.Outcome{}, fmt.Errorf("settle session %s: %w: status is %s", id, domain.ErrSessionNotFilled, view.Status)
	}

	logger := e.logger.WithFields(logrus.Fields{
		"session_id": id,
		"date":       view.Window.Date(),
		"slot":       view.Window.Label(),
	})

	outcome := e.decide(ctx, logger, view)

	_, err = e.registry.WithSession(context.WithoutCancel(ctx), id, func(session *domain.Session) error {
		return session.Apply(outcome, e.clock.Now())
	})
	if err != nil {
		if outcome.Committed {
			e.cancel(ctx, logger, outcome.ReservationRefs)
		}
		return domain.Outcome{}, fmt.Errorf("apply settlement outcome: %w", err)
	}

	e.metrics.Settlement(string(outcome.Status()), time.Since(started))
	entry := logger.WithFields(logrus.Fields{
		"units":   outcome.UnitsAvailable,
		"outcome": outcome.Status(),
		"members": view.PlayerCount,
	})
	if outcome.Committed {
		entry.WithField("refs", outcome.ReservationRefs).Info("session confirmed")
	} else {
		entry.WithField("reason", outcome.Reason).Warn("session failed")
	}

	return outcome, nil
}

func (e *SettlementEngine) decide(ctx context.Context, logger logrus.FieldLogger, view domain.SessionView) domain.Outcome {
	required := view.RequiredUnits

	checkStarted := time.Now()
	units, err := callWithTimeout(ctx, e.config.AvailabilityTimeout, func(callCtx context.Context) (int, error) {
		return e.availability.Check(callCtx, view.Window)
	})
	e.recordCall(callCheck, err, checkStarted)
	if err != nil {
		logger.WithError(err).Warn("availability check failed")
		return domain.Outcome{Reason: fmt.Sprintf("availability check failed: %v", err)}
	}
	if units < 0 {
		units = 0
	}

	outcome := domain.Outcome{UnitsAvailable: units}
	if units < required {
		outcome.Reason = fmt.Sprintf("only %d of %d courts available", units, required)
		return outcome
	}

	key := reservationKey(view)
	reserveStarted := time.Now()
	reservation, err := callWithTimeout(ctx, e.config.ReservationTimeout, func(callCtx context.Context) (ports.Reservation, error) {
		return e.reservations.Reserve(callCtx, key, view.Window, required)
	})
	e.recordCall(callReserve, err, reserveStarted)

	switch {
	case err != nil:
		// The backend may have booked before the answer was lost.
		logger.WithError(err).WithFields(logrus.Fields{
			"units":           required,
			"reservation_key": key,
		}).Error("court reservation failed, releasing by key")
		e.release(ctx, logger, key, required)
		outcome.Reason = fmt.Sprintf("reservation failed: %v", err)
	case !reservation.Committed:
		e.cancel(ctx, logger, reservation.Refs)
		outcome.Reason = "reservation was not committed"
	case len(reservation.Refs) < required:
		e.cancel(ctx, logger, reservation.Refs)
		outcome.Reason = fmt.Sprintf("partial reservation: %d of %d courts", len(reservation.Refs), required)
	default:
		outcome.Committed = true
		outcome.ReservationRefs = append([]string(nil), reservation.Refs...)
	}

	return outcome
}

// cancel releases refs when the reservation client supports it.
func (e *SettlementEngine) cancel(ctx context.Context, logger logrus.FieldLogger, refs []string) {
	if len(refs) == 0 {
		return
	}
	canceller, ok := e.reservations.(ports.ReservationCanceller)
	if !ok {
		logger.WithField("refs", refs).Warn("reservation client cannot cancel, refs left reserved")
		return
	}

	started := time.Now()
	_, err := callWithTimeout(ctx, e.config.ReservationTimeout, func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, canceller.Cancel(callCtx, refs)
	})
	e.recordCall(callCancel, err, started)
	if err != nil {
		logger.WithError(err).WithField("refs", refs).Error("cancel reservation refs")
	}
}

// release drops whatever the backend booked under key.
func (e *SettlementEngine) release(ctx context.Context, logger logrus.FieldLogger, key string, units int) {
	logger = logger.WithFields(logrus.Fields{
		"units":           units,
		"reservation_key": key,
	})
	releaser, ok := e.reservations.(ports.ReservationReleaser)
	if !ok {
		logger.Error("reservation client cannot release by key, courts may stay reserved")
		return
	}

	started := time.Now()
	_, err := callWithTimeout(ctx, e.config.ReservationTimeout, func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, releaser.Release(callCtx, key)
	})
	e.recordCall(callRelease, err, started)
	if err != nil {
		logger.WithError(err).Error("release reservation, courts may stay reserved")
		return
	}
	logger.Info("released reservation")
}

// reservationKey makes retries of one session's reservation idempotent.
func reservationKey(view domain.SessionView) string {
	return string(view.ID)
}

func (e *SettlementEngine) recordCall(call string, err error, started time.Time) {
	result := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	e.metrics.ExternalCall(call, result, time.Since(started))
}

// callWithTimeout bounds fn by timeout even when fn ignores its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(callCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-callCtx.Done():
		var zero T
		return zero, callCtx.Err()
	}
}
