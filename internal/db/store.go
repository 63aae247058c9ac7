package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

/* Sentinel errors returned by every Store implementation */
var (
	ErrNotFound        = errors.New("record not found")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrUnavailable     = errors.New("database unavailable")
)

/* InboxFilter narrows an inbox listing */
type InboxFilter struct {
	WorkspaceID uuid.UUID
	AgentID     *uuid.UUID
	Status      string
	Limit       int
}

/* EventFilter narrows an event listing */
type EventFilter struct {
	WorkspaceID uuid.UUID
	AgentID     *uuid.UUID
	Limit       int
}

/* Decision is a conditional pending → decided transition */
type Decision struct {
	TaskID      uuid.UUID
	WorkspaceID uuid.UUID
	Status      string
	Comment     *string
	DecidedBy   uuid.UUID
}

/* Store is the persistence contract of the relay. Implementations must
 * run WithTx bodies atomically at read committed or stronger. */
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error

	CreateWorkspace(ctx context.Context, ws *Workspace) error
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByTokenHash(ctx context.Context, hash string) (*User, error)
	TouchUserToken(ctx context.Context, userID uuid.UUID) error
	SetUserToken(ctx context.Context, userID uuid.UUID, hash string, rotated bool) (*User, error)
	RevokeUserToken(ctx context.Context, userID uuid.UUID) (bool, error)
	UpdateMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) (*User, error)

	CreateAgent(ctx context.Context, agent *Agent) error
	CreateAgentToken(ctx context.Context, token *AgentToken) error
	GetAgentIDByTokenHash(ctx context.Context, hash string) (uuid.UUID, error)
	GetAgentSummary(ctx context.Context, agentID, workspaceID uuid.UUID) (*AgentSummary, error)
	ListAgentSummaries(ctx context.Context, workspaceID uuid.UUID) ([]AgentSummary, error)
	AgentInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID) (bool, error)
	RevokeAgentTokens(ctx context.Context, agentID uuid.UUID) (int64, error)
	SetAgentStatus(ctx context.Context, agentID uuid.UUID, status string) error
	SetAgentStatusInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID, status string) (bool, error)
	TouchAgentLastSeen(ctx context.Context, agentID uuid.UUID) error

	InsertEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)

	InsertTask(ctx context.Context, task *Task) error
	DecidePendingTask(ctx context.Context, d Decision) (uuid.UUID, bool, error)
	GetTaskStatus(ctx context.Context, taskID, workspaceID uuid.UUID) (string, error)
	CountPendingTasks(ctx context.Context, agentID uuid.UUID) (int, error)
	GetInboxItem(ctx context.Context, taskID, workspaceID uuid.UUID) (*InboxItem, error)
	ListInboxItems(ctx context.Context, filter InboxFilter) ([]InboxItem, error)

	InsertCommand(ctx context.Context, cmd *Command) error
	ListPendingCommands(ctx context.Context, agentID uuid.UUID, since *time.Time) ([]Command, error)
	AckCommand(ctx context.Context, commandID, agentID uuid.UUID) (*Command, error)

	SumWorkspaceSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) (float64, error)
	ListAgentSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]AgentSpend, error)
}
