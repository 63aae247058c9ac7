package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* Agent lifecycle status values */
const (
	AgentStatusIdle            = "idle"
	AgentStatusRunning         = "running"
	AgentStatusPaused          = "paused"
	AgentStatusWaitingApproval = "waiting_approval"
	AgentStatusError           = "error"
)

/* Approval task status values */
const (
	TaskStatusPending  = "pending"
	TaskStatusApproved = "approved"
	TaskStatusRejected = "rejected"
)

/* Command status values */
const (
	CommandStatusPending = "pending"
	CommandStatusAcked   = "acked"
)

// CommandKindApprovalDecision relays an operator decision on an approval task
const CommandKindApprovalDecision = "approval_decision"

/* Event types an agent may report */
const (
	EventTypeAction          = "action"
	EventTypeCompletion      = "completion"
	EventTypeError           = "error"
	EventTypeToolCall        = "tool_call"
	EventTypeApprovalRequest = "approval_request"
)

/* StringList is a JSONB array of strings */
type StringList []string

/* Value implements driver.Valuer */
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

/* Scan implements sql.Scanner */
func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

/* JSONBMap is a JSONB object */
type JSONBMap map[string]interface{}

/* Value implements driver.Valuer */
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

/* Scan implements sql.Scanner */
func (m *JSONBMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONBMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", src)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

/* Workspace is the tenancy boundary owning users and agents */
type Workspace struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

/* User is an operator account */
type User struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	WorkspaceID           uuid.UUID  `db:"workspace_id" json:"workspaceId"`
	MonthlyBudget         float64    `db:"monthly_budget" json:"monthlyBudget"`
	APITokenHash          *string    `db:"api_token_hash" json:"-"`
	APITokenIssuedAt      *time.Time `db:"api_token_issued_at" json:"issuedAt,omitempty"`
	APITokenLastRotatedAt *time.Time `db:"api_token_last_rotated_at" json:"rotatedAt,omitempty"`
	APITokenRevokedAt     *time.Time `db:"api_token_revoked_at" json:"revokedAt,omitempty"`
	APITokenLastUsedAt    *time.Time `db:"api_token_last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
}

/* HasActiveToken reports whether the user holds a non-revoked token */
func (u *User) HasActiveToken() bool {
	return u.APITokenHash != nil && u.APITokenRevokedAt == nil
}

/* Agent is a registered autonomous agent */
type Agent struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"-"`
	OwnerUserID uuid.UUID  `db:"owner_user_id" json:"-"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description"`
	Status      string     `db:"status" json:"status"`
	LastSeenAt  *time.Time `db:"last_seen_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

/* AgentSummary is an agent joined with its activity aggregates */
type AgentSummary struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Status      string    `db:"status" json:"status"`
	Description *string   `db:"description" json:"description"`
	TotalSpend  float64   `db:"total_spend" json:"totalSpend"`
	LastSeen    time.Time `db:"last_seen" json:"lastSeen"`
	EventsCount int       `db:"events_count" json:"eventsCount"`
	TokenHash   *string   `db:"token_hash" json:"-"`
	MaskedToken string    `db:"-" json:"tokenHash"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

/* AgentToken maps a hashed bearer token to an agent */
type AgentToken struct {
	ID        uuid.UUID  `db:"id"`
	AgentID   uuid.UUID  `db:"agent_id"`
	TokenHash string     `db:"token_hash"`
	CreatedAt time.Time  `db:"created_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

/* Event is an immutable activity record reported by an agent */
type Event struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AgentID          uuid.UUID  `db:"agent_id" json:"agentId"`
	Type             string     `db:"type" json:"type"`
	Message          string     `db:"message" json:"message"`
	Cost             float64    `db:"cost" json:"cost"`
	RequiresApproval bool       `db:"requires_approval" json:"-"`
	ProposedAction   *string    `db:"proposed_action" json:"-"`
	CompletedActions StringList `db:"completed_actions" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

/* Task is an approval task awaiting an operator decision */
type Task struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AgentID          uuid.UUID  `db:"agent_id" json:"agentId"`
	EventID          *uuid.UUID `db:"event_id" json:"eventId,omitempty"`
	ProposedAction   string     `db:"proposed_action" json:"proposedAction"`
	CompletedActions StringList `db:"completed_actions" json:"completedActions"`
	Status           string     `db:"status" json:"status"`
	Comment          *string    `db:"comment" json:"comment"`
	DecidedBy        *uuid.UUID `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt        *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

/* InboxItem is a task joined with its agent's display name */
type InboxItem struct {
	Task
	AgentName string `db:"agent_name" json:"agentName"`
}

/* Command is an outbox entry an agent polls for and acknowledges */
type Command struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AgentID      uuid.UUID  `db:"agent_id" json:"agentId"`
	SourceTaskID *uuid.UUID `db:"source_task_id" json:"sourceTaskId"`
	Kind         string     `db:"kind" json:"kind"`
	Payload      JSONBMap   `db:"payload" json:"payload"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	AckedAt      *time.Time `db:"acked_at" json:"ackedAt,omitempty"`
}

/* AgentSpend is one agent's cost over a period */
type AgentSpend struct {
	AgentID   uuid.UUID `db:"agent_id" json:"agentId"`
	AgentName string    `db:"agent_name" json:"agentName"`
	Spend     float64   `db:"spend" json:"spend"`
}
