package application

import (
	"context"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/metrics"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
)

// SessionDefaults apply to every session the engine creates.
type SessionDefaults struct {
	Capacity        int
	RequiredUnits   int
	HoldAmountCents int64
	Location        string
}

type EngineConfig struct {
	Sessions     SessionDefaults
	Settlement   SettlementConfig
	SettleInline bool
}

type EngineDeps struct {
	Availability ports.AvailabilityClient
	Reservations ports.ReservationClient
	Store        ports.SessionStore
	Clock        ports.Clock
	Logger       logrus.FieldLogger
	Metrics      *metrics.Recorder
}

// Engine is the entry point used by the HTTP server, the CLI and the scheduler.
type Engine struct {
	registry   *SessionRegistry
	admission  *AdmissionController
	settlement *SettlementEngine
	defaults   SessionDefaults
}

func NewEngine(config EngineConfig, deps EngineDeps) *Engine {
	logger := logging.OrDiscard(deps.Logger)

	registry := NewSessionRegistry(deps.Store, deps.Clock, logger, deps.Metrics)
	registry.settlingWindow = config.Settlement.withDefaults().settlingWindow()
	settlement := NewSettlementEngine(registry, deps.Availability, deps.Reservations, config.Settlement, deps.Clock, logger, deps.Metrics)
	admission := NewAdmissionController(registry, settlement, deps.Clock, logger, deps.Metrics)
	admission.SettleInline(config.SettleInline)

	return &Engine{
		registry:   registry,
		admission:  admission,
		settlement: settlement,
		defaults:   config.Sessions,
	}
}

// CreateSession opens an empty session for window. Zero capacity takes the configured default.
func (e *Engine) CreateSession(ctx context.Context, window domain.Window, capacity int) (domain.SessionView, error) {
	if capacity == 0 {
		capacity = e.defaults.Capacity
	}

	return e.registry.Create(ctx, NewSessionSpec{
		Window:          window,
		Capacity:        capacity,
		RequiredUnits:   e.defaults.RequiredUnits,
		HoldAmountCents: e.defaults.HoldAmountCents,
		Location:        e.defaults.Location,
	})
}

func (e *Engine) Join(ctx context.Context, id domain.SessionID, member domain.Member) (JoinResult, error) {
	return e.admission.Join(ctx, id, member)
}

func (e *Engine) Leave(ctx context.Context, id domain.SessionID, memberID domain.MemberID) (domain.SessionView, error) {
	return e.admission.Leave(ctx, id, memberID)
}

func (e *Engine) GetSession(id domain.SessionID) (domain.SessionView, error) {
	return e.registry.Get(id)
}

func (e *Engine) ListSessions() []domain.SessionView {
	return e.registry.List()
}

func (e *Engine) FindSession(window domain.Window) (domain.SessionView, bool) {
	return e.registry.FindByWindow(window)
}

// Restore reloads stored sessions; see SessionRegistry.Restore.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	return e.registry.Restore(ctx)
}

func (e *Engine) Drain(ctx context.Context) error {
	return e.admission.Drain(ctx)
}

func (e *Engine) Close(ctx context.Context) error {
	return e.admission.Close(ctx)
}
