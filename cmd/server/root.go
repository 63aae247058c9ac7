package main

import (
	"context"
	"fmt"

	"github.com/jarvis/MissionControl/api/internal/config"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/initialization"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/validation"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	port        string
	databaseURL string
}

// newRootCmd creates the root command; with no subcommand it serves
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Mission Control relay API",
		Long:         `Mission Control relays approval requests from agents to operators and their decisions back to the agents.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, serveOptions{})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (environment variables take precedence)")
	cmd.PersistentFlags().StringVar(&opts.port, "port", "", "Override SERVER_PORT")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Override DATABASE_URL")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newUsersCmd(opts),
		newControlTokenCmd(opts),
	)

	return cmd
}

// load reads configuration and applies flag overrides
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.Database.URL = o.databaseURL
	}
	return cfg, nil
}

// cliLogger keeps stdout for command output
func cliLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "stderr")
}

// connect opens the database for one-shot commands
func connect(ctx context.Context, cfg *config.Config, logger *logging.Logger, migrate bool) (*sqlx.DB, *db.Queries, error) {
	if err := validation.ValidateDSN(cfg.Database.DSN(), "DATABASE_URL"); err != nil {
		return nil, nil, err
	}
	conn, err := initialization.NewBootstrap(cfg.Database, logger).Initialize(ctx, initialization.Options{Migrate: migrate})
	if err != nil {
		return nil, nil, err
	}
	return conn, db.NewQueries(conn, cfg.Database.AcquireTimeout), nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			conn, _, err := connect(cmd.Context(), cfg, cliLogger(cfg), true)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied.")
			return nil
		},
	}
}
