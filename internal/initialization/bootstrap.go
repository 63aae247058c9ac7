package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/jarvis/MissionControl/api/internal/config"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/metrics"
	"github.com/jmoiron/sqlx"
)

// Bootstrap connects the database and prepares it for serving
type Bootstrap struct {
	cfg    config.DatabaseConfig
	logger *logging.Logger
	retry  RetryConfig

	open    func(ctx context.Context, dsn string, pool db.PoolConfig) (*sqlx.DB, error)
	migrate func(ctx context.Context, conn *sqlx.DB) error
}

// Options selects the optional bootstrap steps
type Options struct {
	Migrate       bool
	RegisterStats bool
}

// NewBootstrap creates a new bootstrap instance
func NewBootstrap(cfg config.DatabaseConfig, logger *logging.Logger) *Bootstrap {
	retry := DefaultRetryConfig()
	if cfg.ConnectRetries > 0 {
		retry.MaxAttempts = cfg.ConnectRetries
	}
	return &Bootstrap{
		cfg:     cfg,
		logger:  logger,
		retry:   retry,
		open:    db.Open,
		migrate: db.Migrate,
	}
}

// Initialize opens the pool with retry, then runs the selected steps. The
// returned handle is owned by the caller.
func (b *Bootstrap) Initialize(ctx context.Context, opts Options) (*sqlx.DB, error) {
	bm := NewBootstrapMetrics()
	defer func() {
		bm.Finish()
		bm.LogMetrics(b.logger)
	}()

	b.logger.Info("Starting application bootstrap sequence", nil)

	stepStart := time.Now()
	var conn *sqlx.DB
	err := Retry(ctx, b.logger, b.retry, "database connect", func(ctx context.Context) error {
		var err error
		conn, err = b.open(ctx, b.cfg.DSN(), db.PoolConfig{
			MaxOpenConns:    b.cfg.MaxOpenConns,
			MaxIdleConns:    b.cfg.MaxIdleConns,
			ConnMaxLifetime: b.cfg.ConnMaxLifetime,
			ConnMaxIdleTime: b.cfg.ConnMaxIdleTime,
			AcquireTimeout:  b.cfg.AcquireTimeout,
		})
		return err
	})
	bm.TrackStep("connect", time.Since(stepStart), err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Migrate {
		stepStart = time.Now()
		err := b.migrate(ctx, conn)
		bm.TrackStep("migrate", time.Since(stepStart), err == nil)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if opts.RegisterStats {
		if err := metrics.RegisterDBStats(conn.DB); err != nil {
			b.logger.Warn("Database pool metrics not registered", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	b.logger.Info("Application bootstrap completed", map[string]interface{}{
		"migrated": opts.Migrate,
	})
	return conn, nil
}
