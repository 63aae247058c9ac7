package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const commandColumns = `id, agent_id, source_task_id, kind, payload, status, created_at, acked_at`

// InsertCommand enqueues a pending command. A second command for the same
// source task fails with ErrUniqueViolation.
func (q *Queries) InsertCommand(ctx context.Context, cmd *Command) error {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	if cmd.Payload == nil {
		cmd.Payload = JSONBMap{}
	}
	cmd.Status = CommandStatusPending
	return q.get(ctx, &cmd.CreatedAt, `
		INSERT INTO commands (id, agent_id, source_task_id, kind, payload, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING created_at`,
		cmd.ID, cmd.AgentID, cmd.SourceTaskID, cmd.Kind, cmd.Payload, cmd.Status)
}

// ListPendingCommands lists the agent's pending commands, oldest first
func (q *Queries) ListPendingCommands(ctx context.Context, agentID uuid.UUID, since *time.Time) ([]Command, error) {
	commands := []Command{}
	err := q.selectAll(ctx, &commands, `
		SELECT `+commandColumns+`
		FROM commands
		WHERE agent_id = $1 AND status = 'pending'
			AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at ASC, id`,
		agentID, since)
	return commands, err
}

// AckCommand marks one of the agent's commands acknowledged
func (q *Queries) AckCommand(ctx context.Context, commandID, agentID uuid.UUID) (*Command, error) {
	var cmd Command
	err := q.get(ctx, &cmd, `
		UPDATE commands SET status = 'acked', acked_at = now()
		WHERE id = $1 AND agent_id = $2
		RETURNING `+commandColumns,
		commandID, agentID)
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}
