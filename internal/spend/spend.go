// Package spend reports event cost against an operator's monthly budget.
package spend

import (
	"context"
	"math"
	"time"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
)

// Summary is the workspace spend view
type Summary struct {
	Daily          float64         `json:"daily"`
	Monthly        float64         `json:"monthly"`
	Budget         float64         `json:"budget"`
	AgentBreakdown []db.AgentSpend `json:"agentBreakdown"`
}

// Service computes spend summaries
type Service struct {
	store  db.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a spend reporter
func NewService(store db.Store, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock returns a copy of the service reading time from now
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// Summary reports today's and this month's spend in UTC with a per-agent
// monthly breakdown ordered by spend, then name
func (s *Service) Summary(ctx context.Context, user *db.User) (*Summary, error) {
	current, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := s.store.SumWorkspaceSpend(ctx, current.WorkspaceID, dayStart)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	monthly, err := s.store.SumWorkspaceSpend(ctx, current.WorkspaceID, monthStart)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	breakdown, err := s.store.ListAgentSpend(ctx, current.WorkspaceID, monthStart)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}

	return &Summary{
		Daily:          daily,
		Monthly:        monthly,
		Budget:         current.MonthlyBudget,
		AgentBreakdown: breakdown,
	}, nil
}

// UpdateBudget sets the operator's monthly budget and returns the refreshed summary
func (s *Service) UpdateBudget(ctx context.Context, user *db.User, budget float64) (*Summary, error) {
	if budget <= 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return nil, apperr.Validation("budget", "must be greater than 0")
	}
	if _, err := s.store.UpdateMonthlyBudget(ctx, user.ID, budget); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	s.logger.FromContext(ctx).Info("Monthly budget updated", map[string]interface{}{
		"user_id": user.ID.String(),
		"budget":  budget,
	})
	return s.Summary(ctx, user)
}
