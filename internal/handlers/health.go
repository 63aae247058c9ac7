package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/initialization"
)

// HealthHandlers serves the liveness and readiness probe
type HealthHandlers struct {
	checker *initialization.HealthChecker
}

// NewHealthHandlers creates new health handlers
func NewHealthHandlers(checker *initialization.HealthChecker) *HealthHandlers {
	return &HealthHandlers{checker: checker}
}

// Health reports store reachability; 503 when the database cannot be reached
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckAll(r.Context())
	code := http.StatusOK
	if !status.Overall {
		code = http.StatusServiceUnavailable
	}
	WriteSuccess(w, status, code)
}
