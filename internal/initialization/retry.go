package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/jarvis/MissionControl/api/internal/logging"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry executes a function with retry logic
func Retry(ctx context.Context, logger *logging.Logger, config RetryConfig, operation string, fn RetryableFunc) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attemptErr := fn(ctx)
		if attemptErr == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retry", map[string]interface{}{
					"operation": operation,
					"attempt":   attempt,
				})
			}
			return nil
		}

		lastErr = attemptErr
		logger.Warn("Operation failed", map[string]interface{}{
			"operation":    operation,
			"attempt":      attempt,
			"max_attempts": config.MaxAttempts,
			"error":        attemptErr.Error(),
		})

		// Don't wait after the last attempt
		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * config.Multiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, config.MaxAttempts, lastErr)
}
