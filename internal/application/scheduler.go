package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
)

const DefaultScheduleCron = "0 6 * * *"

type sessionCreator interface {
	FindSession(window domain.Window) (domain.SessionView, bool)
	CreateSession(ctx context.Context, window domain.Window, capacity int) (domain.SessionView, error)
}

// SlotScheduler opens one session per configured slot every day.
type SlotScheduler struct {
	sessions sessionCreator
	slots    []domain.Slot
	location *time.Location
	spec     string
	clock    ports.Clock
	logger   logrus.FieldLogger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewSlotScheduler(sessions sessionCreator, slots []domain.Slot, location *time.Location, spec string, clock ports.Clock, logger logrus.FieldLogger) *SlotScheduler {
	if len(slots) == 0 {
		slots = domain.DefaultSlots()
	}
	if location == nil {
		location = time.Local
	}
	if spec == "" {
		spec = DefaultScheduleCron
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SlotScheduler{
		sessions: sessions,
		slots:    append([]domain.Slot(nil), slots...),
		location: location,
		spec:     spec,
		clock:    clock,
		logger:   logging.OrDiscard(logger),
	}
}

// GenerateDay creates the sessions for day. Windows that already have a session are skipped.
func (s *SlotScheduler) GenerateDay(ctx context.Context, day time.Time) ([]domain.SessionView, error) {
	var (
		created []domain.SessionView
		errs    []error
	)

	for _, slot := range s.slots {
		window := slot.WindowOn(day, s.location)
		if _, exists := s.sessions.FindSession(window); exists {
			continue
		}

		view, err := s.sessions.CreateSession(ctx, window, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s session: %w", slot, err))
			continue
		}
		created = append(created, view)
	}

	s.logger.WithFields(logrus.Fields{
		"date":    day.In(s.location).Format(domain.DateLayout),
		"created": len(created),
	}).Info("daily slots generated")

	return created, errors.Join(errs...)
}

// Start generates today's slots and then runs the cron schedule.
func (s *SlotScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("slot scheduler already started")
	}

	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.GenerateDay(context.Background(), s.clock.Now()); err != nil {
			s.logger.WithError(err).Error("generate daily slots")
		}
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.spec, err)
	}

	if _, err := s.GenerateDay(ctx, s.clock.Now()); err != nil {
		s.logger.WithError(err).Error("generate daily slots")
	}

	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule and waits for a running job.
func (s *SlotScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop slot scheduler: %w", ctx.Err())
	}
}
