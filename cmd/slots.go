package cmd

import (
	"fmt"

	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/spf13/cobra"
)

func newSlotsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage the daily slot schedule",
	}

	cmd.AddCommand(newSlotsGenerateCmd(app))
	return cmd
}

func newSlotsGenerateCmd(app *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Open one session per configured slot for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := app.config.Schedule.Location()
			if err != nil {
				return err
			}
			day, err := dayFromFlag(date, app.now(), loc)
			if err != nil {
				return err
			}
			slots, err := app.config.Schedule.ParsedSlots()
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), app, func(rt *runtime) error {
				scheduler := application.NewSlotScheduler(rt.engine, slots, loc, app.config.Schedule.Cron, clockFunc(app.now), app.logger)
				created, err := scheduler.GenerateDay(cmd.Context(), day)
				for _, view := range created {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created session %s  %s %s\n", view.ID, view.Window.Date(), view.Label())
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d of %d slots created\n", len(created), len(slots))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day YYYY-MM-DD (default today)")
	return cmd
}
