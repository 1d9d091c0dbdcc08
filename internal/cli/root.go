// Package cli implements the sessionflow command line client.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xrmultiplayer/sessionflow/internal/config"
	"github.com/xrmultiplayer/sessionflow/internal/factory"
)

var (
	cfg     config.Config
	app     *factory.App
	logger  *slog.Logger
	verbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var playerName, backend string

	rootCmd := &cobra.Command{
		Use:   "sessionflow",
		Short: "Session orchestration client for relay-backed multiplayer",
		Long: `sessionflow finds or creates multiplayer sessions through a session
directory, brings up a relay-backed transport, and keeps the session alive.

Configuration comes from SESSIONFLOW_* environment variables; the most
common settings can be overridden with flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if playerName != "" {
				cfg.PlayerName = playerName
			}
			if backend != "" {
				cfg.Backend = backend
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				_ = app.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&playerName, "player-name", "", "Player display name (env: SESSIONFLOW_PLAYER_NAME)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Provider backend: memory, redis (env: SESSIONFLOW_BACKEND)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAssignmentCmd())

	return rootCmd
}

// buildApp wires the application. autoJoin overrides the configured
// auto-join behavior: explicit join and create commands pick their own
// session instead.
func buildApp(autoJoin bool) error {
	c := cfg
	c.AutoJoin = autoJoin
	var err error
	app, err = factory.New(c, logger)
	return err
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
