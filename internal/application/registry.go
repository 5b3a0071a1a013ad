package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/metrics"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
)

// ReasonSettlementInterrupted is recorded on sessions restored while still Filled.
const ReasonSettlementInterrupted = "settlement interrupted"

const maxConflictAttempts = 3

// NewSessionSpec describes a session to create. Zero values take the domain defaults.
type NewSessionSpec struct {
	ID              domain.SessionID
	Window          domain.Window
	Capacity        int
	RequiredUnits   int
	HoldAmountCents int64
	Location        string
}

type sessionEntry struct {
	mu      sync.Mutex
	session domain.Session
}

func (e *sessionEntry) view() domain.SessionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.View()
}

// SessionRegistry owns every live session. Each session has its own lock;
// the map lock only guards lookup and insert.
type SessionRegistry struct {
	mu      sync.RWMutex
	entries map[domain.SessionID]*sessionEntry

	store   ports.SessionStore
	clock   ports.Clock
	logger  logrus.FieldLogger
	metrics *metrics.Recorder

	// settlingWindow bounds how long a settlement may run. Restore leaves
	// younger Filled sessions alone.
	settlingWindow time.Duration
}

// NewSessionRegistry builds a registry. store may be nil for a purely in-memory engine.
func NewSessionRegistry(store ports.SessionStore, clock ports.Clock, logger logrus.FieldLogger, recorder *metrics.Recorder) *SessionRegistry {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionRegistry{
		entries: map[domain.SessionID]*sessionEntry{},
		store:   store,
		clock:   clock,
		logger:  logging.OrDiscard(logger),
		metrics: recorder,
	}
}

func (r *SessionRegistry) Create(ctx context.Context, spec NewSessionSpec) (domain.SessionView, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionView{}, err
	}

	id := domain.SessionID(strings.TrimSpace(string(spec.ID)))
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}

	session, err := domain.NewSession(id, spec.Window, spec.Capacity, spec.RequiredUnits, r.clock.Now())
	if err != nil {
		return domain.SessionView{}, fmt.Errorf("create session: %w", err)
	}
	if spec.HoldAmountCents > 0 {
		session.HoldAmountCents = spec.HoldAmountCents
	}
	session.Location = spec.Location
	session.Revision = 1

	if _, err := r.entry(id); err == nil {
		return domain.SessionView{}, fmt.Errorf("create session %s: %w", id, domain.ErrSessionExists)
	}
	if err := r.save(ctx, session); err != nil {
		if errors.Is(err, domain.ErrRevisionConflict) {
			return domain.SessionView{}, fmt.Errorf("create session %s: %w", id, domain.ErrSessionExists)
		}
		return domain.SessionView{}, fmt.Errorf("create session %s: %w", id, err)
	}

	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return domain.SessionView{}, fmt.Errorf("create session %s: %w", id, domain.ErrSessionExists)
	}
	r.entries[id] = &sessionEntry{session: session}
	r.mu.Unlock()

	r.metrics.SessionCreated()
	r.logger.WithFields(logrus.Fields{
		"session_id": id,
		"date":       session.Window.Date(),
		"slot":       session.Window.Label(),
		"capacity":   session.Capacity,
	}).Info("session created")

	return session.View(), nil
}

func (r *SessionRegistry) entry(id domain.SessionID) (*sessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return entry, nil
}

func (r *SessionRegistry) Get(id domain.SessionID) (domain.SessionView, error) {
	entry, err := r.entry(id)
	if err != nil {
		return domain.SessionView{}, err
	}
	return entry.view(), nil
}

// List returns every session ordered by window start.
func (r *SessionRegistry) List() []domain.SessionView {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	views := make([]domain.SessionView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entry.view())
	}

	sort.Slice(views, func(i, j int) bool {
		if !views[i].Window.Start.Equal(views[j].Window.Start) {
			return views[i].Window.Start.Before(views[j].Window.Start)
		}
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.Before(views[j].CreatedAt)
		}
		return views[i].ID < views[j].ID
	})

	return views
}

// FindByWindow returns the earliest created session for exactly this window.
func (r *SessionRegistry) FindByWindow(window domain.Window) (domain.SessionView, bool) {
	for _, view := range r.List() {
		if view.Window.Equal(window) {
			return view, true
		}
	}
	return domain.SessionView{}, false
}

// WithSession runs fn with exclusive access to a working copy of the session.
// The copy replaces the session only when fn returns nil and, with a store
// configured, only after the store accepted it. A store conflict reloads the
// stored session and replays fn on it.
func (r *SessionRegistry) WithSession(ctx context.Context, id domain.SessionID, fn func(*domain.Session) error) (domain.SessionView, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionView{}, err
	}

	entry, err := r.entry(id)
	if err != nil {
		return domain.SessionView{}, err
	}

	for attempt := 1; ; attempt++ {
		committed, err := r.mutate(ctx, entry, fn)
		if err == nil {
			return committed.View(), nil
		}
		if !errors.Is(err, domain.ErrRevisionConflict) || attempt == maxConflictAttempts {
			return domain.SessionView{}, err
		}

		r.logger.WithFields(logrus.Fields{
			"session_id": id,
			"attempt":    attempt,
		}).Debug("session changed in the store, reloading")
		if err := r.reload(ctx, entry); err != nil {
			return domain.SessionView{}, err
		}
	}
}

func (r *SessionRegistry) mutate(ctx context.Context, entry *sessionEntry, fn func(*domain.Session) error) (domain.Session, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.session.Clone()
	if err := fn(&working); err != nil {
		return domain.Session{}, err
	}
	if len(working.Members) > working.Capacity {
		panic(fmt.Sprintf("session %s holds %d members over capacity %d", working.ID, len(working.Members), working.Capacity))
	}

	working.ID = entry.session.ID
	working.Revision = entry.session.Revision + 1
	working.UpdatedAt = r.clock.Now()
	if err := r.save(ctx, working); err != nil {
		return domain.Session{}, err
	}
	entry.session = working

	return working.Clone(), nil
}

// reload replaces the cached session with the stored one when the store is ahead.
func (r *SessionRegistry) reload(ctx context.Context, entry *sessionEntry) error {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	id := entry.session.ID
	stored, err := r.store.GetByID(context.WithoutCancel(ctx), id)
	if err != nil {
		return fmt.Errorf("reload session %s: %w", id, err)
	}
	if err := stored.Validate(); err != nil {
		return fmt.Errorf("reload session %s: %w", id, err)
	}
	if stored.Revision > entry.session.Revision {
		entry.session = stored
	}
	return nil
}

// Restore loads stored snapshots. Sessions found Filled lost their settlement
// and are failed so they never stay Filled, unless they were filled within
// the settling window and may still be settling in another process.
func (r *SessionRegistry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}

	sessions, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored sessions: %w", err)
	}

	var (
		restored    int
		errs        []error
		interrupted []domain.SessionID
	)

	now := r.clock.Now()
	r.mu.Lock()
	for _, session := range sessions {
		if err := session.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("restore session %s: %w", session.ID, err))
			continue
		}
		if _, exists := r.entries[session.ID]; exists {
			continue
		}

		if session.Status == domain.StatusFilled {
			if r.settlingWindow > 0 && now.Sub(session.UpdatedAt) < r.settlingWindow {
				r.logger.WithField("session_id", session.ID).Info("filled session may still be settling elsewhere")
			} else {
				interrupted = append(interrupted, session.ID)
			}
		}

		r.entries[session.ID] = &sessionEntry{session: session}
		restored++
	}
	r.mu.Unlock()

	for _, id := range interrupted {
		_, err := r.WithSession(ctx, id, func(session *domain.Session) error {
			return session.Fail(ReasonSettlementInterrupted, r.clock.Now())
		})
		switch {
		case err == nil:
			r.logger.WithField("session_id", id).Warn("failed session whose settlement was interrupted")
		case errors.Is(err, domain.ErrSessionNotFilled):
			r.logger.WithField("session_id", id).Debug("interrupted session was settled by another writer")
		default:
			errs = append(errs, fmt.Errorf("restore session %s: %w", id, err))
		}
	}

	return restored, errors.Join(errs...)
}

// save hands the snapshot to the store before it is published.
func (r *SessionRegistry) save(ctx context.Context, session domain.Session) error {
	if r.store == nil {
		return nil
	}

	err := r.store.Save(context.WithoutCancel(ctx), session)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRevisionConflict):
		r.metrics.StoreConflict()
		return err
	}

	r.metrics.StoreError()
	r.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"revision":   session.Revision,
	}).WithError(err).Error("persist session snapshot")
	return fmt.Errorf("persist session %s: %w", session.ID, err)
}
