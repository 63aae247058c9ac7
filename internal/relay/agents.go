package relay

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
)

/* Field limits for agent registration */
const (
	maxAgentNameLen   = 120
	maxDescriptionLen = 500
)

// AgentInput registers a new agent
type AgentInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Validate checks the registration fields
func (in *AgentInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.Validation("name", "is required")
	}
	if len(name) > maxAgentNameLen {
		return apperr.Validation("name", "must be at most 120 characters")
	}
	if in.Description != nil && len(*in.Description) > maxDescriptionLen {
		return apperr.Validation("description", "must be at most 500 characters")
	}
	return nil
}

// CreatedAgent is a new agent and its raw token, shown exactly once
type CreatedAgent struct {
	Agent      db.AgentSummary `json:"agent"`
	AgentToken string          `json:"agentToken"`
}

// CreateAgent registers an idle agent owned by operator and issues its token
func (s *Service) CreateAgent(ctx context.Context, operator *db.User, in AgentInput) (*CreatedAgent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		summary *db.AgentSummary
		raw     string
	)
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		agent := &db.Agent{
			WorkspaceID: operator.WorkspaceID,
			OwnerUserID: operator.ID,
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			Status:      db.AgentStatusIdle,
		}
		if err := tx.CreateAgent(ctx, agent); err != nil {
			return err
		}
		var err error
		if raw, err = auth.IssueAgentToken(ctx, tx, agent.ID); err != nil {
			return err
		}
		summary, err = tx.GetAgentSummary(ctx, agent.ID, operator.WorkspaceID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}

	summary.MaskedToken = auth.MaskTokenHash(summary.TokenHash)
	s.logger.FromContext(ctx).Info("Agent registered", map[string]interface{}{
		"agent_id":     summary.ID.String(),
		"workspace_id": operator.WorkspaceID.String(),
	})
	return &CreatedAgent{Agent: *summary, AgentToken: raw}, nil
}

// ListAgents lists the workspace's agents newest first
func (s *Service) ListAgents(ctx context.Context, workspaceID uuid.UUID) ([]db.AgentSummary, error) {
	agents, err := s.store.ListAgentSummaries(ctx, workspaceID)
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}
	for i := range agents {
		agents[i].MaskedToken = auth.MaskTokenHash(agents[i].TokenHash)
	}
	return agents, nil
}

// GetAgent gets one agent of the workspace
func (s *Service) GetAgent(ctx context.Context, workspaceID, agentID uuid.UUID) (*db.AgentSummary, error) {
	agent, err := s.store.GetAgentSummary(ctx, agentID, workspaceID)
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}
	agent.MaskedToken = auth.MaskTokenHash(agent.TokenHash)
	return agent, nil
}

// SetAgentStatus is the operator override of the derived status. It holds
// until the next approval-task lifecycle event recomputes the status.
func (s *Service) SetAgentStatus(ctx context.Context, workspaceID, agentID uuid.UUID, status string) (*db.AgentSummary, error) {
	switch status {
	case db.AgentStatusIdle, db.AgentStatusRunning, db.AgentStatusPaused, db.AgentStatusError:
	case db.AgentStatusWaitingApproval:
		return nil, apperr.Validation("status", "waiting_approval is derived from pending approvals")
	default:
		return nil, apperr.Validation("status", "must be one of idle, running, paused, error")
	}

	ok, err := s.store.SetAgentStatusInWorkspace(ctx, agentID, workspaceID, status)
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}
	if !ok {
		return nil, apperr.NotFound("agent not found")
	}
	s.logger.FromContext(ctx).Info("Agent status overridden", map[string]interface{}{
		"agent_id": agentID.String(),
		"status":   status,
	})
	return s.GetAgent(ctx, workspaceID, agentID)
}
