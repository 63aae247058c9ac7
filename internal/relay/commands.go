package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// ListCommands returns the agent's pending commands oldest first. A non-nil
// since restricts the result to commands created at or after it. Creation is
// the insert time, not the commit time, so a cursor-following caller should
// poll with some overlap or omit since; acknowledged commands never reappear.
func (s *Service) ListCommands(ctx context.Context, agentID uuid.UUID, since *time.Time) ([]db.Command, error) {
	ctx, span := s.startSpan(ctx, "ListCommands", attribute.String("agent.id", agentID.String()))
	cmds, err := s.store.ListPendingCommands(ctx, agentID, since)
	if err != nil {
		err = apperr.FromStore(err, "command not found")
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("commands.count", len(cmds)))
	endSpan(span, nil)

	metrics.RecordCommandsDelivered(len(cmds))
	return cmds, nil
}

// AckCommand acknowledges one of the agent's own commands. Commands of other
// agents are indistinguishable from missing ones.
func (s *Service) AckCommand(ctx context.Context, agentID, commandID uuid.UUID) (*db.Command, error) {
	ctx, span := s.startSpan(ctx, "AckCommand",
		attribute.String("agent.id", agentID.String()),
		attribute.String("command.id", commandID.String()),
	)
	cmd, err := s.store.AckCommand(ctx, commandID, agentID)
	if err != nil {
		err = apperr.FromStore(err, "command not found")
		endSpan(span, err)
		return nil, err
	}
	endSpan(span, nil)

	metrics.RecordCommandAcked()
	s.logger.FromContext(ctx).Debug("Command acknowledged", map[string]interface{}{
		"agent_id":   agentID.String(),
		"command_id": commandID.String(),
	})
	return cmd, nil
}
