package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/spend"
)

// SpendHandlers serves the workspace spend view
type SpendHandlers struct {
	spend *spend.Service
	fail  auth.ErrorWriter
}

// NewSpendHandlers creates new spend handlers
func NewSpendHandlers(spendSvc *spend.Service, fail auth.ErrorWriter) *SpendHandlers {
	return &SpendHandlers{spend: spendSvc, fail: fail}
}

type budgetRequest struct {
	Budget *float64 `json:"budget"`
}

// GetSpend returns daily and monthly spend with the per-agent breakdown
func (h *SpendHandlers) GetSpend(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.spend.Summary(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, summary, http.StatusOK)
}

// UpdateBudget sets the operator's monthly budget
func (h *SpendHandlers) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Budget == nil {
		h.fail(w, r, apperr.Validation("budget", "is required"))
		return
	}
	summary, err := h.spend.UpdateBudget(r.Context(), user, *req.Budget)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, summary, http.StatusOK)
}
