package cmd

import (
	"context"
	"errors"
	"fmt"

	boardadapter "github.com/royalclubcanada/dropin/internal/adapters/render/board"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/royalclubcanada/dropin/internal/config"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/spf13/cobra"
)

var demoPlayers = []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank"}

func newSimulateCmd(app *app) *cobra.Command {
	var (
		sessionID string
		date      string
		slot      string
		busy      int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fill a session with demo players and settle it",
		Long:  "simulate joins demo players to a session until it is full, runs settlement against the configured court backend and prints the resulting board.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if busy > 0 && app.config.Courts.Backend != config.CourtsBackendMemory {
				return errors.New("--busy needs courts.backend = memory")
			}

			steps := make(chan string, 4)
			report := func(step string) {
				select {
				case steps <- step:
				default:
				}
			}

			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				view, err := simulationSession(cmd.Context(), app, rt, sessionID, date, slot)
				if err != nil {
					return err
				}
				if busy > 0 {
					booked := rt.inventory.Book(view.Window, busy)
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "booked %d courts outside the drop-in\n", len(booked))
				}

				final, err := fillSession(cmd, rt.engine, view, steps)
				if err != nil {
					return err
				}

				return writeBoard(cmd, app, []domain.SessionView{final}, boardadapter.RenderOptions{Title: "Drop-In Simulation", ShowMembers: true})
			}, withCourtSteps(report))
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "existing open session to fill")
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD for a new session (default today)")
	cmd.Flags().StringVar(&slot, "slot", "", "slot HH:MM-HH:MM for a new session (default the first configured slot)")
	cmd.Flags().IntVar(&busy, "busy", 0, "courts to book for other players before filling (memory backend)")
	cmd.MarkFlagsMutuallyExclusive("session", "slot")
	cmd.MarkFlagsMutuallyExclusive("session", "date")

	return cmd
}

func simulationSession(ctx context.Context, app *app, rt *runtime, sessionID, date, slot string) (domain.SessionView, error) {
	if sessionID != "" {
		view, err := rt.engine.GetSession(domain.SessionID(sessionID))
		if err != nil {
			return domain.SessionView{}, err
		}
		if view.Status != domain.StatusOpen {
			return domain.SessionView{}, fmt.Errorf("%w: session %s is %s", domain.ErrSessionNotOpen, view.ID, view.Status)
		}
		return view, nil
	}

	loc, err := app.config.Schedule.Location()
	if err != nil {
		return domain.SessionView{}, err
	}
	if slot == "" {
		slots, err := app.config.Schedule.ParsedSlots()
		if err != nil {
			return domain.SessionView{}, err
		}
		slot = slots[0].String()
	}

	window, err := windowFromFlags(date, slot, app.now(), loc)
	if err != nil {
		return domain.SessionView{}, err
	}
	if existing, ok := rt.engine.FindSession(window); ok {
		if existing.Status != domain.StatusOpen {
			return domain.SessionView{}, fmt.Errorf("%w: session %s for %s %s is %s", domain.ErrSessionNotOpen, existing.ID, window.Date(), window.Label(), existing.Status)
		}
		return existing, nil
	}

	return rt.engine.CreateSession(ctx, window, 0)
}

// fillSession joins demo players until the session fills, following the
// court calls of the filling join on stderr.
func fillSession(cmd *cobra.Command, engine *application.Engine, view domain.SessionView, steps <-chan string) (domain.SessionView, error) {
	members := make([]domain.Member, 0, view.SpotsLeft)
	for i := view.PlayerCount; i < view.Capacity; i++ {
		members = append(members, domain.Member{DisplayName: demoPlayerName(i)})
	}
	if len(members) == 0 {
		return engine.GetSession(view.ID)
	}

	results, err := runFillProgress(cmd.Context(), cmd.ErrOrStderr(), engine, view.ID, members, steps)
	for _, result := range results {
		writeJoinResult(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return domain.SessionView{}, err
	}
	if len(results) == 0 {
		return engine.GetSession(view.ID)
	}

	return results[len(results)-1].Session, nil
}

func demoPlayerName(i int) string {
	if i < len(demoPlayers) {
		return demoPlayers[i]
	}
	return fmt.Sprintf("Player %d", i+1)
}
