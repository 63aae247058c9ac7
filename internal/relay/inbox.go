package relay

import (
	"context"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
)

// InboxQuery narrows an inbox listing
type InboxQuery struct {
	Status  string
	AgentID *uuid.UUID
	Limit   int
}

// ListInbox lists the workspace's approval tasks, pending first then newest first
func (s *Service) ListInbox(ctx context.Context, workspaceID uuid.UUID, q InboxQuery) ([]db.InboxItem, error) {
	if q.Status != "" && !isTaskStatus(q.Status) {
		return nil, apperr.Validation("status", "must be one of pending, approved, rejected")
	}
	limit, err := clampLimit(q.Limit, DefaultInboxLimit)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListInboxItems(ctx, db.InboxFilter{
		WorkspaceID: workspaceID,
		AgentID:     q.AgentID,
		Status:      q.Status,
		Limit:       limit,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "inbox item not found")
	}
	return items, nil
}

// GetInboxItem gets one approval task of the workspace
func (s *Service) GetInboxItem(ctx context.Context, workspaceID, taskID uuid.UUID) (*db.InboxItem, error) {
	item, err := s.store.GetInboxItem(ctx, taskID, workspaceID)
	if err != nil {
		return nil, apperr.FromStore(err, "inbox item not found")
	}
	return item, nil
}

func isTaskStatus(status string) bool {
	switch status {
	case db.TaskStatusPending, db.TaskStatusApproved, db.TaskStatusRejected:
		return true
	}
	return false
}
