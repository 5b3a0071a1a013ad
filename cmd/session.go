package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	boardadapter "github.com/royalclubcanada/dropin/internal/adapters/render/board"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, inspect, join and leave drop-in sessions",
	}

	cmd.AddCommand(
		newSessionCreateCmd(app),
		newSessionListCmd(app),
		newSessionShowCmd(app),
		newSessionJoinCmd(app),
		newSessionLeaveCmd(app),
	)

	return cmd
}

func newSessionCreateCmd(app *app) *cobra.Command {
	var (
		date     string
		slot     string
		capacity int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an empty session for a date and slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := app.config.Schedule.Location()
			if err != nil {
				return err
			}
			window, err := windowFromFlags(date, slot, app.now(), loc)
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				if existing, ok := rt.engine.FindSession(window); ok {
					return fmt.Errorf("%w: %s already covers %s %s", domain.ErrSessionExists, existing.ID, window.Date(), window.Label())
				}

				view, err := rt.engine.CreateSession(cmd.Context(), window, capacity)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONOutput(cmd.OutOrStdout(), view)
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created session %s\n", view.ID)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "window: %s %s\n", view.Window.Date(), view.Label())
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "capacity: %d\n", view.Capacity)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "session date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&slot, "slot", "", "slot HH:MM-HH:MM")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "player capacity (default session.capacity)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")
	_ = cmd.MarkFlagRequired("slot")

	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	var (
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter domain.Status
			if status != "" {
				parsed, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = parsed
			}

			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				views := filterByStatus(rt.engine.ListSessions(), filter)
				if asJSON {
					return writeJSONOutput(cmd.OutOrStdout(), views)
				}
				if len(views) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}

				for _, view := range views {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s  %-9s  %d/%d\n",
						view.ID, view.Window.Date(), view.Label(), view.Status, view.PlayerCount, view.Capacity)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only sessions with this status (open, filled, confirmed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")

	return cmd
}

func newSessionShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				view, err := rt.engine.GetSession(domain.SessionID(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONOutput(cmd.OutOrStdout(), view)
				}
				return writeBoard(cmd, app, []domain.SessionView{view}, boardadapter.RenderOptions{Title: "Drop-In Session", ShowMembers: true})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")

	return cmd
}

func newSessionJoinCmd(app *app) *cobra.Command {
	var (
		name     string
		memberID string
	)

	cmd := &cobra.Command{
		Use:   "join <session-id>",
		Short: "Add a player to an open session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				result, err := rt.engine.Join(cmd.Context(), domain.SessionID(args[0]), domain.Member{
					ID:          domain.MemberID(memberID),
					DisplayName: name,
				})
				if err != nil {
					return err
				}

				writeJoinResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "player display name")
	cmd.Flags().StringVar(&memberID, "member-id", "", "member id (generated when empty)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionLeaveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <session-id> <member-id>",
		Short: "Remove a player from an open session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				view, err := rt.engine.Leave(cmd.Context(), domain.SessionID(args[0]), domain.MemberID(args[1]))
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d/%d players\n", view.ID, view.PlayerCount, view.Capacity)
				return nil
			})
		},
	}
}

// withRuntime runs fn against a settle-inline engine and releases it afterwards.
func withRuntime(ctx context.Context, app *app, fn func(rt *runtime) error, opts ...runtimeOption) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := app.newRuntime(ctx, true, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = fmt.Errorf("close engine: %w", closeErr)
		}
	}()

	return fn(rt)
}

func writeJoinResult(out io.Writer, result application.JoinResult) {
	view := result.Session
	_, _ = fmt.Fprintf(out, "%s joined session %s as %s (%d/%d)\n",
		sanitizeForTerminal(result.Member.DisplayName), view.ID, result.Member.ID, view.PlayerCount, view.Capacity)

	if !result.JustFilled {
		return
	}

	switch view.Status {
	case domain.StatusConfirmed:
		_, _ = fmt.Fprintf(out, "session filled: confirmed, courts %s\n", strings.Join(view.ReservationRefs, ", "))
	case domain.StatusFailed:
		_, _ = fmt.Fprintf(out, "session filled: failed, %s\n", view.FailureReason)
	default:
		_, _ = fmt.Fprintln(out, "session filled: settling")
	}
}

func writeBoard(cmd *cobra.Command, app *app, views []domain.SessionView, opts boardadapter.RenderOptions) error {
	if opts.Now.IsZero() {
		opts.Now = app.now()
	}

	rendered, err := app.boardRenderer(views, opts)
	if err != nil {
		return fmt.Errorf("render board: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeJSONOutput(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func filterByStatus(views []domain.SessionView, status domain.Status) []domain.SessionView {
	if status == "" {
		return views
	}

	filtered := make([]domain.SessionView, 0, len(views))
	for _, view := range views {
		if view.Status == status {
			filtered = append(filtered, view)
		}
	}
	return filtered
}

// windowFromFlags places a "HH:MM-HH:MM" slot on date, or on the current day when date is empty.
func windowFromFlags(date, slot string, now time.Time, loc *time.Location) (domain.Window, error) {
	day, err := dayFromFlag(date, now, loc)
	if err != nil {
		return domain.Window{}, err
	}

	parsed, err := domain.ParseSlot(slot)
	if err != nil {
		return domain.Window{}, fmt.Errorf("%w: %v", domain.ErrInvalidWindow, err)
	}

	return parsed.WindowOn(day, loc), nil
}

func dayFromFlag(date string, now time.Time, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.In(loc), nil
	}

	day, err := time.ParseInLocation(domain.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --date %q: %w", date, err)
	}
	return day, nil
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
