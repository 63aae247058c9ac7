package relay

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

/* Field limits for agent-reported events */
const (
	maxMessageLen        = 2000
	maxProposedActionLen = 2000
	maxCompletedActions  = 200
)

var eventTypes = map[string]bool{
	db.EventTypeAction:          true,
	db.EventTypeCompletion:      true,
	db.EventTypeError:           true,
	db.EventTypeToolCall:        true,
	db.EventTypeApprovalRequest: true,
}

// EventInput is an event as reported by an agent
type EventInput struct {
	Type             string   `json:"type"`
	Message          string   `json:"message"`
	Cost             float64  `json:"cost"`
	RequiresApproval bool     `json:"requiresApproval"`
	ProposedAction   *string  `json:"proposedAction"`
	CompletedActions []string `json:"completedActions"`
}

// Validate checks the event fields. A missing proposed action on an
// approval request is not checked here; the event is still recorded.
func (in *EventInput) Validate() error {
	if !eventTypes[in.Type] {
		return apperr.Validation("type", "must be one of action, completion, error, tool_call, approval_request")
	}
	if strings.TrimSpace(in.Message) == "" {
		return apperr.Validation("message", "is required")
	}
	if len(in.Message) > maxMessageLen {
		return apperr.Validation("message", "must be at most 2000 characters")
	}
	if in.Cost < 0 || math.IsNaN(in.Cost) || math.IsInf(in.Cost, 0) {
		return apperr.Validation("cost", "must be a non-negative number")
	}
	if in.ProposedAction != nil && len(*in.ProposedAction) > maxProposedActionLen {
		return apperr.Validation("proposedAction", "must be at most 2000 characters")
	}
	if len(in.CompletedActions) > maxCompletedActions {
		return apperr.Validation("completedActions", "must have at most 200 entries")
	}
	return nil
}

func (in *EventInput) proposedAction() string {
	if in.ProposedAction == nil {
		return ""
	}
	return strings.TrimSpace(*in.ProposedAction)
}

// IngestResult is the recorded event and, for approval requests, the new task
type IngestResult struct {
	Event  db.Event   `json:"event"`
	TaskID *uuid.UUID `json:"taskId"`
}

// IngestEvent appends an agent event. When approval is required a pending
// task is created and the agent moved to waiting_approval in the same
// transaction. An approval request without a proposed action is still
// recorded, then rejected with a validation error.
func (s *Service) IngestEvent(ctx context.Context, agentID uuid.UUID, in EventInput) (*IngestResult, error) {
	ctx, span := s.startSpan(ctx, "IngestEvent",
		attribute.String("agent.id", agentID.String()),
		attribute.String("event.type", in.Type),
		attribute.Bool("event.requires_approval", in.RequiresApproval),
	)
	result, err := s.ingestEvent(ctx, agentID, in)
	endSpan(span, err)
	return result, err
}

func (s *Service) ingestEvent(ctx context.Context, agentID uuid.UUID, in EventInput) (*IngestResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	event := &db.Event{
		AgentID:          agentID,
		Type:             in.Type,
		Message:          in.Message,
		Cost:             in.Cost,
		RequiresApproval: in.RequiresApproval,
		CompletedActions: db.StringList(in.CompletedActions),
	}
	proposed := in.proposedAction()
	if in.RequiresApproval && proposed != "" {
		event.ProposedAction = &proposed
	}

	var taskID *uuid.UUID
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		if err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}
		if err := tx.TouchAgentLastSeen(ctx, agentID); err != nil {
			return err
		}
		if !in.RequiresApproval || proposed == "" {
			return nil
		}

		task := &db.Task{
			AgentID:          agentID,
			EventID:          &event.ID,
			ProposedAction:   proposed,
			CompletedActions: db.StringList(in.CompletedActions),
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		if err := tx.SetAgentStatus(ctx, agentID, db.AgentStatusWaitingApproval); err != nil {
			return err
		}
		taskID = &task.ID
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}
	metrics.RecordEventIngested(in.Type, in.RequiresApproval)

	logger := s.logger.FromContext(ctx)
	if in.RequiresApproval && proposed == "" {
		logger.Warn("Approval requested without a proposed action", map[string]interface{}{
			"agent_id": agentID.String(),
			"event_id": event.ID.String(),
		})
		return nil, apperr.Validation("proposedAction", "is required when requiresApproval is true")
	}
	if taskID != nil {
		logger.Info("Approval task created", map[string]interface{}{
			"agent_id": agentID.String(),
			"event_id": event.ID.String(),
			"task_id":  taskID.String(),
		})
	}
	return &IngestResult{Event: *event, TaskID: taskID}, nil
}

// ListEvents lists the workspace's events newest first, optionally for one agent
func (s *Service) ListEvents(ctx context.Context, workspaceID uuid.UUID, agentID *uuid.UUID, limit int) ([]db.Event, error) {
	limit, err := clampLimit(limit, DefaultEventLimit)
	if err != nil {
		return nil, err
	}
	if agentID != nil {
		ok, err := s.store.AgentInWorkspace(ctx, *agentID, workspaceID)
		if err != nil {
			return nil, apperr.FromStore(err, "agent not found")
		}
		if !ok {
			return nil, apperr.NotFound("agent not found")
		}
	}
	events, err := s.store.ListEvents(ctx, db.EventFilter{WorkspaceID: workspaceID, AgentID: agentID, Limit: limit})
	if err != nil {
		return nil, apperr.FromStore(err, "agent not found")
	}
	return events, nil
}

func clampLimit(limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > MaxListLimit {
		return 0, apperr.Validation("limit", "must be between 1 and 500")
	}
	return limit, nil
}
