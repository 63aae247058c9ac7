package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SumWorkspaceSpend sums event cost across the workspace since a point in time
func (q *Queries) SumWorkspaceSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) (float64, error) {
	var total float64
	err := q.get(ctx, &total, `
		SELECT COALESCE(SUM(e.cost), 0)::float8
		FROM events e
		JOIN agents a ON a.id = e.agent_id
		WHERE a.workspace_id = $1 AND e.created_at >= $2`,
		workspaceID, since)
	return total, err
}

// ListAgentSpend breaks spend down per agent, highest first
func (q *Queries) ListAgentSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]AgentSpend, error) {
	rows := []AgentSpend{}
	err := q.selectAll(ctx, &rows, `
		SELECT a.id AS agent_id, a.name AS agent_name,
			COALESCE(SUM(e.cost) FILTER (WHERE e.created_at >= $2), 0)::float8 AS spend
		FROM agents a
		LEFT JOIN events e ON e.agent_id = a.id
		WHERE a.workspace_id = $1
		GROUP BY a.id, a.name
		ORDER BY spend DESC, a.name ASC`,
		workspaceID, since)
	return rows, err
}
