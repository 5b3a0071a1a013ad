package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the court API token",
	}

	cmd.AddCommand(newTokenSetCmd(app), newTokenClearCmd(app))
	return cmd
}

func newTokenSetCmd(app *app) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the bearer token used against the court API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("token value is empty")
			}

			if err := app.secretStore.Put(cmd.Context(), app.config.Courts.TokenKey, value); err != nil {
				return fmt.Errorf("store court api token: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stored court api token under %s\n", app.config.Courts.TokenKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "token value")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newTokenClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored court API token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.secretStore.Delete(cmd.Context(), app.config.Courts.TokenKey); err != nil {
				return fmt.Errorf("delete court api token: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed court api token")
			return nil
		},
	}
}
