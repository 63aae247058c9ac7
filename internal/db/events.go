package db

import (
	"context"

	"github.com/google/uuid"
)

// InsertEvent appends an event
func (q *Queries) InsertEvent(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CompletedActions == nil {
		event.CompletedActions = StringList{}
	}
	return q.get(ctx, &event.CreatedAt, `
		INSERT INTO events (id, agent_id, type, message, cost, requires_approval, proposed_action, completed_actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING created_at`,
		event.ID, event.AgentID, event.Type, event.Message, event.Cost,
		event.RequiresApproval, event.ProposedAction, event.CompletedActions)
}

// ListEvents lists events of the workspace, newest first
func (q *Queries) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	events := []Event{}
	err := q.selectAll(ctx, &events, `
		SELECT e.id, e.agent_id, e.type, e.message, e.cost::float8 AS cost,
			e.requires_approval, e.proposed_action, e.completed_actions, e.created_at
		FROM events e
		JOIN agents a ON a.id = e.agent_id
		WHERE a.workspace_id = $1 AND ($2::uuid IS NULL OR e.agent_id = $2)
		ORDER BY e.created_at DESC, e.id
		LIMIT $3`,
		filter.WorkspaceID, filter.AgentID, filter.Limit)
	return events, err
}
