package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "dropin",
		Short:         "Drop-in session engine: admit players and book courts when a session fills",
		Long:          "dropin runs capacity-limited drop-in sessions. Players join until the session is full, then the engine checks court availability and reserves every required court or releases all holds.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		app.setLogOutput(cmd.ErrOrStderr())
		if logLevel == "" {
			return nil
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("parse --log-level: %w", err)
		}
		app.logger.SetLevel(level)
		return nil
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newSessionCmd(app),
		newSlotsCmd(app),
		newSimulateCmd(app),
		newBoardCmd(app),
		newTokenCmd(app),
	)

	return rootCmd
}
