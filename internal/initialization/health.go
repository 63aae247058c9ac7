package initialization

import (
	"context"
	"time"

	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
)

// HealthChecker reports whether the service can reach its store
type HealthChecker struct {
	store   db.Store
	logger  *logging.Logger
	timeout time.Duration
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(store db.Store, logger *logging.Logger) *HealthChecker {
	return &HealthChecker{
		store:   store,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
	Overall   bool                   `json:"overall"`
}

// CheckResult represents the result of an individual health check
type CheckResult struct {
	Status     string  `json:"status"` // "pass" or "fail"
	Message    string  `json:"message"`
	DurationMs float64 `json:"durationMs"`
}

// CheckAll performs all health checks
func (hc *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	checks := map[string]CheckResult{
		"database": hc.checkDatabase(ctx),
	}

	overall := true
	for _, check := range checks {
		if check.Status != "pass" {
			overall = false
		}
	}

	status := "healthy"
	if !overall {
		status = "unhealthy"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
		Overall:   overall,
	}
}

// checkDatabase pings the store
func (hc *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.store.Ping(ctx)
	duration := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		hc.logger.FromContext(ctx).Warn("Database health check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return CheckResult{Status: "fail", Message: "database unreachable", DurationMs: duration}
	}
	return CheckResult{Status: "pass", Message: "database reachable", DurationMs: duration}
}
