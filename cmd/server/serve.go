package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/handlers"
	"github.com/jarvis/MissionControl/api/internal/initialization"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/middleware"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	migrate bool
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var serve serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, serve)
		},
	}
	cmd.Flags().BoolVar(&serve.migrate, "migrate", false, "Apply the schema before serving")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, serve serveOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting Mission Control API server", nil)

	conn, err := initialization.NewBootstrap(cfg.Database, logger).Initialize(ctx, initialization.Options{
		Migrate:       serve.migrate,
		RegisterStats: true,
	})
	if err != nil {
		logger.Error("Bootstrap failed", err, nil)
		return err
	}
	defer conn.Close()

	controlPlane, err := auth.NewControlPlane(cfg.Auth.ControlPlaneSecret, cfg.Auth.ControlPlaneTokenTTL)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	router := handlers.NewRouter(handlers.Deps{
		Config:       cfg,
		Logger:       logger,
		Store:        db.NewQueries(conn, cfg.Database.AcquireTimeout),
		ControlPlane: controlPlane,
		Limiter:      limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address": srv.Addr,
		})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", err, nil)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
		return err
	}

	logger.Info("Server stopped", nil)
	return nil
}
