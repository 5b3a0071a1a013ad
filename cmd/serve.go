package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/royalclubcanada/dropin/internal/adapters/httpapi"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var (
		addr       string
		courts     string
		store      string
		noSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily slot schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				app.config.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("courts") {
				app.config.Courts.Backend = courts
			}
			if cmd.Flags().Changed("store") {
				app.config.Store.Backend = store
			}
			if err := app.config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cmd, app, !noSchedule)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr)")
	cmd.Flags().StringVar(&courts, "courts", "", "court backend: api or memory (default courts.backend)")
	cmd.Flags().StringVar(&store, "store", "", "session store: memory, toml or redis (default store.backend)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "do not generate daily slot sessions")

	return cmd
}

func runServer(ctx context.Context, cmd *cobra.Command, app *app, schedule bool) error {
	loc, err := app.config.Schedule.Location()
	if err != nil {
		return err
	}

	rt, err := app.newRuntime(ctx, false)
	if err != nil {
		return err
	}

	var scheduler *application.SlotScheduler
	if schedule {
		slots, err := app.config.Schedule.ParsedSlots()
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			return err
		}
		scheduler = application.NewSlotScheduler(rt.engine, slots, loc, app.config.Schedule.Cron, clockFunc(app.now), app.logger)
		if err := scheduler.Start(ctx); err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			return err
		}
	}

	handler := httpapi.NewHandler(rt.engine, httpapi.Options{
		Location:       loc,
		RateLimit:      app.config.HTTP.RateLimit,
		Burst:          app.config.HTTP.Burst,
		MetricsHandler: app.metrics.Handler(),
		Logger:         app.logger,
	})

	listener, err := net.Listen("tcp", app.config.HTTP.Addr)
	if err != nil {
		_ = shutdown(context.WithoutCancel(ctx), nil, scheduler, rt)
		return fmt.Errorf("listen on %s: %w", app.config.HTTP.Addr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app.logger.WithFields(logrus.Fields{
		"addr":   listener.Addr().String(),
		"courts": app.config.Courts.Backend,
		"store":  app.config.Store.Backend,
	}).Info("drop-in server listening")
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on http://%s\n", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	app.logger.Info("shutting down")
	return errors.Join(runErr, shutdown(shutdownCtx, server, scheduler, rt))
}

// shutdown stops accepting requests before it drains pending settlements.
func shutdown(ctx context.Context, server *http.Server, scheduler *application.SlotScheduler, rt *runtime) error {
	var errs []error
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if err := rt.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain settlements: %w", err))
	}
	return errors.Join(errs...)
}
