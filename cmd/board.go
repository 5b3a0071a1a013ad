package cmd

import (
	boardadapter "github.com/royalclubcanada/dropin/internal/adapters/render/board"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/spf13/cobra"
)

func newBoardCmd(app *app) *cobra.Command {
	var (
		status  string
		members bool
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Render every session as a board",
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
				return writeBoard(cmd, app, views, boardadapter.RenderOptions{ShowMembers: members})
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only sessions with this status")
	cmd.Flags().BoolVar(&members, "members", false, "list members under each session")

	return cmd
}
