package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/royalclubcanada/dropin/internal/adapters/courtapi"
	"github.com/royalclubcanada/dropin/internal/adapters/courts/inventory"
	boardadapter "github.com/royalclubcanada/dropin/internal/adapters/render/board"
	redisrepo "github.com/royalclubcanada/dropin/internal/adapters/repo/redis"
	tomlrepo "github.com/royalclubcanada/dropin/internal/adapters/repo/toml"
	chainstore "github.com/royalclubcanada/dropin/internal/adapters/secrets/chain"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/royalclubcanada/dropin/internal/config"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/royalclubcanada/dropin/internal/metrics"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const secretsEnvPrefix = "DROPIN"

type courtBackend interface {
	ports.AvailabilityClient
	ports.ReservationClient
}

type app struct {
	config        config.Config
	logger        *logrus.Logger
	metrics       *metrics.Recorder
	secretStore   ports.SecretStore
	boardRenderer func([]domain.SessionView, boardadapter.RenderOptions) (string, error)
	httpClient    *http.Client
	now           func() time.Time
}

// runtime is the per-command engine together with what must be released after it.
type runtime struct {
	engine    *application.Engine
	inventory *inventory.Inventory
	closers   []func() error
}

func (r *runtime) Close(ctx context.Context) error {
	errs := []error{r.engine.Close(ctx)}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	secretStore, err := chainstore.NewEnvFirstWithFileFallback(secretsEnvPrefix, filepath.Join(dir, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	return &app{
		config:        cfg,
		logger:        logger,
		metrics:       metrics.NewRecorder(),
		secretStore:   secretStore,
		boardRenderer: boardadapter.Render,
		httpClient:    &http.Client{},
		now:           time.Now,
	}, nil
}

type runtimeOption func(*runtimeOptions)

type runtimeOptions struct {
	courtSteps func(step string)
}

// withCourtSteps reports every call the engine makes to the court backend.
func withCourtSteps(report func(step string)) runtimeOption {
	return func(o *runtimeOptions) {
		o.courtSteps = report
	}
}

// newRuntime builds the engine over the configured store and court backend and restores stored sessions.
func (a *app) newRuntime(ctx context.Context, settleInline bool, opts ...runtimeOption) (*runtime, error) {
	var options runtimeOptions
	for _, opt := range opts {
		opt(&options)
	}

	rt := &runtime{}

	store, closeStore, err := a.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	courts, err := a.courtBackend()
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, err
	}
	if inv, ok := courts.(*inventory.Inventory); ok {
		rt.inventory = inv
	}
	if options.courtSteps != nil {
		courts = steppedCourts{courtBackend: courts, report: options.courtSteps}
	}

	rt.engine = application.NewEngine(application.EngineConfig{
		Sessions: application.SessionDefaults{
			Capacity:        a.config.Session.Capacity,
			RequiredUnits:   a.config.Session.RequiredUnits,
			HoldAmountCents: a.config.Session.HoldAmountCents,
			Location:        a.config.Session.Location,
		},
		Settlement: application.SettlementConfig{
			AvailabilityTimeout: a.config.Settlement.AvailabilityTimeout,
			ReservationTimeout:  a.config.Settlement.ReservationTimeout,
		},
		SettleInline: settleInline,
	}, application.EngineDeps{
		Availability: courts,
		Reservations: courts,
		Store:        store,
		Clock:        clockFunc(a.now),
		Logger:       a.logger,
		Metrics:      a.metrics,
	})

	restored, err := rt.engine.Restore(ctx)
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	a.logger.WithField("sessions", restored).Debug("restored sessions")

	if rt.inventory != nil {
		// Confirmed sessions keep their courts across runs of the in-memory backend.
		for _, view := range rt.engine.ListSessions() {
			if view.Status == domain.StatusConfirmed {
				rt.inventory.Book(view.Window, len(view.ReservationRefs))
			}
		}
	}

	return rt, nil
}

func (a *app) sessionStore(ctx context.Context) (ports.SessionStore, func() error, error) {
	switch a.config.Store.Backend {
	case config.StoreBackendMemory:
		return nil, nil, nil
	case config.StoreBackendTOML:
		v := viper.New()
		v.Set("store.path", a.config.Store.Path)
		repo, err := tomlrepo.NewRepository(v)
		if err != nil {
			return nil, nil, fmt.Errorf("wire session repository: %w", err)
		}
		return repo, nil, nil
	case config.StoreBackendRedis:
		client, err := redisrepo.Dial(ctx, a.config.Store.RedisAddr, a.config.Store.RedisPassword, a.config.Store.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("wire redis session store: %w", err)
		}
		return redisrepo.NewStore(client, a.config.Store.RedisPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", a.config.Store.Backend)
	}
}

func (a *app) courtBackend() (courtBackend, error) {
	switch a.config.Courts.Backend {
	case config.CourtsBackendMemory:
		return inventory.New(a.config.Courts.MemoryCourts), nil
	case config.CourtsBackendAPI:
		return &courtapi.Client{
			BaseURL:        a.config.Courts.BaseURL,
			HTTPClient:     a.httpClient,
			RequestTimeout: a.config.Courts.RequestTimeout,
			Secrets:        a.secretStore,
			TokenKey:       a.config.Courts.TokenKey,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported courts backend %q", a.config.Courts.Backend)
	}
}

func (a *app) setLogOutput(out io.Writer) {
	a.logger.SetOutput(out)
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time {
	return f()
}
