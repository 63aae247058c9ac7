package relay

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

const maxCommentLen = 2000

// DecisionInput is an operator's verdict on an approval task
type DecisionInput struct {
	Decision string  `json:"decision"`
	Comment  *string `json:"comment"`
}

// Validate checks the decision fields
func (in *DecisionInput) Validate() error {
	if in.Decision != db.TaskStatusApproved && in.Decision != db.TaskStatusRejected {
		return apperr.Validation("decision", "must be approved or rejected")
	}
	if in.Comment != nil && len(*in.Comment) > maxCommentLen {
		return apperr.Validation("comment", "must be at most 2000 characters")
	}
	return nil
}

// Decide resolves a pending task and relays the verdict to its agent.
// The transition, the command insert and the status recompute commit
// together or not at all.
func (s *Service) Decide(ctx context.Context, operator *db.User, taskID uuid.UUID, in DecisionInput) (*db.InboxItem, error) {
	ctx, span := s.startSpan(ctx, "Decide",
		attribute.String("task.id", taskID.String()),
		attribute.String("decision", in.Decision),
	)
	item, err := s.decide(ctx, operator, taskID, in)
	endSpan(span, err)

	if in.Decision == db.TaskStatusApproved || in.Decision == db.TaskStatusRejected {
		metrics.RecordDecision(in.Decision, decisionOutcome(err))
	}
	return item, err
}

func (s *Service) decide(ctx context.Context, operator *db.User, taskID uuid.UUID, in DecisionInput) (*db.InboxItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.FromContext(ctx).With(map[string]interface{}{
		"task_id":  taskID.String(),
		"decision": in.Decision,
	})

	var item *db.InboxItem
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		agentID, updated, err := tx.DecidePendingTask(ctx, db.Decision{
			TaskID:      taskID,
			WorkspaceID: operator.WorkspaceID,
			Status:      in.Decision,
			Comment:     in.Comment,
			DecidedBy:   operator.ID,
		})
		if err != nil {
			return err
		}
		if !updated {
			if _, err := tx.GetTaskStatus(ctx, taskID, operator.WorkspaceID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return apperr.NotFound("inbox item not found")
				}
				return err
			}
			return apperr.Conflict("inbox item already decided")
		}

		payload := db.JSONBMap{"decision": in.Decision, "comment": nil}
		if in.Comment != nil {
			payload["comment"] = *in.Comment
		}
		cmd := &db.Command{
			AgentID:      agentID,
			SourceTaskID: &taskID,
			Kind:         db.CommandKindApprovalDecision,
			Payload:      payload,
		}
		if err := tx.InsertCommand(ctx, cmd); err != nil {
			if errors.Is(err, db.ErrUniqueViolation) {
				return apperr.Conflict("a decision command already exists for this inbox item")
			}
			return err
		}

		if err := recomputeStatus(ctx, tx, agentID); err != nil {
			return err
		}

		item, err = tx.GetInboxItem(ctx, taskID, operator.WorkspaceID)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			logger.Warn("Decision rejected", map[string]interface{}{"reason": err.Error()})
		}
		return nil, apperr.FromStore(err, "inbox item not found")
	}

	logger.Info("Decision recorded", map[string]interface{}{
		"agent_id":   item.AgentID.String(),
		"decided_by": operator.ID.String(),
	})
	return item, nil
}

// recomputeStatus derives the agent status from its outstanding pending tasks
func recomputeStatus(ctx context.Context, tx db.Store, agentID uuid.UUID) error {
	pending, err := tx.CountPendingTasks(ctx, agentID)
	if err != nil {
		return err
	}
	status := db.AgentStatusRunning
	if pending > 0 {
		status = db.AgentStatusWaitingApproval
	}
	return tx.SetAgentStatus(ctx, agentID, status)
}

func decisionOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case apperr.Is(err, apperr.KindConflict):
		return "conflict"
	case apperr.Is(err, apperr.KindNotFound):
		return "not_found"
	case apperr.Is(err, apperr.KindValidation):
		return "invalid"
	case apperr.Is(err, apperr.KindUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
