package db

import (
	"context"

	"github.com/google/uuid"
)

const agentSummarySelect = `
	SELECT a.id, a.name, a.status, a.description, a.created_at,
		COALESCE(SUM(e.cost), 0)::float8 AS total_spend,
		COALESCE(a.last_seen_at, MAX(e.created_at), a.created_at) AS last_seen,
		COUNT(e.id) AS events_count,
		(SELECT t.token_hash FROM agent_tokens t
		 WHERE t.agent_id = a.id AND t.revoked_at IS NULL
		 ORDER BY t.created_at DESC LIMIT 1) AS token_hash
	FROM agents a
	LEFT JOIN events e ON e.agent_id = a.id`

// CreateAgent inserts an agent
func (q *Queries) CreateAgent(ctx context.Context, agent *Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.Status == "" {
		agent.Status = AgentStatusIdle
	}
	return q.get(ctx, &agent.CreatedAt, `
		INSERT INTO agents (id, workspace_id, owner_user_id, name, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		agent.ID, agent.WorkspaceID, agent.OwnerUserID, agent.Name, agent.Description, agent.Status)
}

// CreateAgentToken inserts a token hash for an agent
func (q *Queries) CreateAgentToken(ctx context.Context, token *AgentToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return q.get(ctx, &token.CreatedAt, `
		INSERT INTO agent_tokens (id, agent_id, token_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		token.ID, token.AgentID, token.TokenHash)
}

// GetAgentIDByTokenHash resolves an active agent token
func (q *Queries) GetAgentIDByTokenHash(ctx context.Context, hash string) (uuid.UUID, error) {
	var agentID uuid.UUID
	err := q.get(ctx, &agentID, `
		SELECT agent_id FROM agent_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL`, hash)
	return agentID, err
}

// GetAgentSummary gets one agent with its aggregates
func (q *Queries) GetAgentSummary(ctx context.Context, agentID, workspaceID uuid.UUID) (*AgentSummary, error) {
	var summary AgentSummary
	err := q.get(ctx, &summary, agentSummarySelect+`
		WHERE a.id = $1 AND a.workspace_id = $2
		GROUP BY a.id`, agentID, workspaceID)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListAgentSummaries lists the workspace's agents, newest first
func (q *Queries) ListAgentSummaries(ctx context.Context, workspaceID uuid.UUID) ([]AgentSummary, error) {
	summaries := []AgentSummary{}
	err := q.selectAll(ctx, &summaries, agentSummarySelect+`
		WHERE a.workspace_id = $1
		GROUP BY a.id
		ORDER BY a.created_at DESC`, workspaceID)
	return summaries, err
}

// AgentInWorkspace reports whether the agent belongs to the workspace
func (q *Queries) AgentInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID) (bool, error) {
	var exists bool
	err := q.get(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM agents WHERE id = $1 AND workspace_id = $2)`,
		agentID, workspaceID)
	return exists, err
}

// RevokeAgentTokens revokes every active token of the agent
func (q *Queries) RevokeAgentTokens(ctx context.Context, agentID uuid.UUID) (int64, error) {
	return q.exec(ctx,
		`UPDATE agent_tokens SET revoked_at = now() WHERE agent_id = $1 AND revoked_at IS NULL`,
		agentID)
}

// SetAgentStatus writes the agent's status
func (q *Queries) SetAgentStatus(ctx context.Context, agentID uuid.UUID, status string) error {
	n, err := q.exec(ctx, `UPDATE agents SET status = $2 WHERE id = $1`, agentID, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAgentStatusInWorkspace writes the status of an agent scoped to a workspace
func (q *Queries) SetAgentStatusInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID, status string) (bool, error) {
	n, err := q.exec(ctx,
		`UPDATE agents SET status = $3 WHERE id = $1 AND workspace_id = $2`,
		agentID, workspaceID, status)
	return n > 0, err
}

// TouchAgentLastSeen refreshes the agent's last-seen timestamp
func (q *Queries) TouchAgentLastSeen(ctx context.Context, agentID uuid.UUID) error {
	_, err := q.exec(ctx, `UPDATE agents SET last_seen_at = now() WHERE id = $1`, agentID)
	return err
}
