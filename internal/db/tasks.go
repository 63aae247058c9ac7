package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const inboxSelect = `
	SELECT t.id, t.agent_id, t.event_id, t.proposed_action, t.completed_actions, t.status,
		t.comment, t.decided_by, t.decided_at, t.created_at, a.name AS agent_name
	FROM tasks t
	JOIN agents a ON a.id = t.agent_id`

// InsertTask creates a pending approval task
func (q *Queries) InsertTask(ctx context.Context, task *Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CompletedActions == nil {
		task.CompletedActions = StringList{}
	}
	task.Status = TaskStatusPending
	return q.get(ctx, &task.CreatedAt, `
		INSERT INTO tasks (id, agent_id, event_id, proposed_action, completed_actions, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING created_at`,
		task.ID, task.AgentID, task.EventID, task.ProposedAction, task.CompletedActions, task.Status)
}

// DecidePendingTask moves a task out of pending. It returns the owning agent
// and false, with no error, when no pending task in the workspace matched.
func (q *Queries) DecidePendingTask(ctx context.Context, d Decision) (uuid.UUID, bool, error) {
	var agentID uuid.UUID
	err := q.get(ctx, &agentID, `
		UPDATE tasks t
		SET status = $3, comment = $4, decided_by = $5, decided_at = now()
		FROM agents a
		WHERE t.id = $1 AND t.status = 'pending'
			AND a.id = t.agent_id AND a.workspace_id = $2
		RETURNING t.agent_id`,
		d.TaskID, d.WorkspaceID, d.Status, d.Comment, d.DecidedBy)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return agentID, true, nil
}

// GetTaskStatus reads a task's status within a workspace
func (q *Queries) GetTaskStatus(ctx context.Context, taskID, workspaceID uuid.UUID) (string, error) {
	var status string
	err := q.get(ctx, &status, `
		SELECT t.status FROM tasks t
		JOIN agents a ON a.id = t.agent_id
		WHERE t.id = $1 AND a.workspace_id = $2`, taskID, workspaceID)
	return status, err
}

// CountPendingTasks counts the agent's pending tasks
func (q *Queries) CountPendingTasks(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := q.get(ctx, &count,
		`SELECT COUNT(*) FROM tasks WHERE agent_id = $1 AND status = 'pending'`, agentID)
	return count, err
}

// GetInboxItem gets one task joined with its agent name
func (q *Queries) GetInboxItem(ctx context.Context, taskID, workspaceID uuid.UUID) (*InboxItem, error) {
	var item InboxItem
	err := q.get(ctx, &item, inboxSelect+`
		WHERE t.id = $1 AND a.workspace_id = $2`, taskID, workspaceID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListInboxItems lists tasks with pending first, then newest first
func (q *Queries) ListInboxItems(ctx context.Context, filter InboxFilter) ([]InboxItem, error) {
	var status *string
	if filter.Status != "" {
		status = &filter.Status
	}
	items := []InboxItem{}
	err := q.selectAll(ctx, &items, inboxSelect+`
		WHERE a.workspace_id = $1
			AND ($2::text IS NULL OR t.status = $2)
			AND ($3::uuid IS NULL OR t.agent_id = $3)
		ORDER BY (t.status = 'pending') DESC, t.created_at DESC, t.id
		LIMIT $4`,
		filter.WorkspaceID, status, filter.AgentID, filter.Limit)
	return items, err
}
