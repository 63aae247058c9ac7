package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
)

// Registry resolves bearer tokens to agents and operators and manages their lifecycle
type Registry struct {
	store  db.Store
	logger *logging.Logger
}

// NewRegistry creates a token registry over store
func NewRegistry(store db.Store, logger *logging.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// ResolveAgent maps a raw agent token to its agent. Every failure other than
// storage unavailability is reported as an authentication error.
func (r *Registry) ResolveAgent(ctx context.Context, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, apperr.Unauthenticated()
	}
	agentID, err := r.store.GetAgentIDByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return uuid.Nil, authFailure(err)
	}
	return agentID, nil
}

// ResolveUser maps a raw operator token to its user and stamps the token's last use
func (r *Registry) ResolveUser(ctx context.Context, raw string) (*db.User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.Unauthenticated()
	}
	user, err := r.store.GetUserByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, authFailure(err)
	}
	if err := r.store.TouchUserToken(ctx, user.ID); err != nil {
		r.logger.FromContext(ctx).Warn("Failed to record token use", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}
	return user, nil
}

func authFailure(err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return apperr.Unavailable(err)
	}
	return apperr.Unauthenticated()
}

// IssueAgentToken creates and stores a new token for agentID, returning the raw value.
// store may be a transaction.
func IssueAgentToken(ctx context.Context, store db.Store, agentID uuid.UUID) (string, error) {
	raw, err := GenerateToken()
	if err != nil {
		return "", apperr.Internal("token generation failed", err)
	}
	token := &db.AgentToken{AgentID: agentID, TokenHash: HashToken(raw)}
	if err := store.CreateAgentToken(ctx, token); err != nil {
		return "", apperr.FromStore(err, "agent not found")
	}
	return raw, nil
}

// RevokeAgent revokes every active token of an agent in the workspace
func (r *Registry) RevokeAgent(ctx context.Context, agentID, workspaceID uuid.UUID) error {
	ok, err := r.store.AgentInWorkspace(ctx, agentID, workspaceID)
	if err != nil {
		return apperr.FromStore(err, "agent not found")
	}
	if !ok {
		return apperr.NotFound("agent not found")
	}
	n, err := r.store.RevokeAgentTokens(ctx, agentID)
	if err != nil {
		return apperr.FromStore(err, "agent not found")
	}
	r.logger.FromContext(ctx).Info("Agent tokens revoked", map[string]interface{}{
		"agent_id": agentID.String(),
		"revoked":  n,
	})
	return nil
}

// CreateUser creates an operator in a new workspace and issues their first token
func (r *Registry) CreateUser(ctx context.Context, email string, budget float64) (*db.User, string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if budget <= 0 {
		return nil, "", apperr.Validation("monthlyBudget", "must be greater than 0")
	}

	var (
		user *db.User
		raw  string
	)
	err := r.store.WithTx(ctx, func(tx db.Store) error {
		ws := &db.Workspace{Name: fmt.Sprintf("%s workspace", email)}
		if err := tx.CreateWorkspace(ctx, ws); err != nil {
			return err
		}
		created := &db.User{Email: email, WorkspaceID: ws.ID, MonthlyBudget: budget}
		if err := tx.CreateUser(ctx, created); err != nil {
			if errors.Is(err, db.ErrUniqueViolation) {
				return apperr.Conflict("a user with this email already exists")
			}
			return err
		}

		var err error
		raw, err = GenerateToken()
		if err != nil {
			return apperr.Internal("token generation failed", err)
		}
		user, err = tx.SetUserToken(ctx, created.ID, HashToken(raw), false)
		return err
	})
	if err != nil {
		return nil, "", apperr.FromStore(err, "user not found")
	}

	r.logger.FromContext(ctx).Info("User created", map[string]interface{}{
		"user_id":      user.ID.String(),
		"workspace_id": user.WorkspaceID.String(),
	})
	return user, raw, nil
}

// IssueUserToken issues a token for the user with email. A prior active token
// is replaced and the rotation time stamped.
func (r *Registry) IssueUserToken(ctx context.Context, email string) (*db.User, string, error) {
	if err := validateEmail(strings.TrimSpace(email)); err != nil {
		return nil, "", err
	}
	user, err := r.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", apperr.FromStore(err, "user not found")
	}
	return r.replaceUserToken(ctx, user)
}

// RotateUserToken replaces the operator's token; the old one stops resolving immediately
func (r *Registry) RotateUserToken(ctx context.Context, user *db.User) (*db.User, string, error) {
	return r.replaceUserToken(ctx, user)
}

func (r *Registry) replaceUserToken(ctx context.Context, user *db.User) (*db.User, string, error) {
	raw, err := GenerateToken()
	if err != nil {
		return nil, "", apperr.Internal("token generation failed", err)
	}
	updated, err := r.store.SetUserToken(ctx, user.ID, HashToken(raw), user.HasActiveToken())
	if err != nil {
		return nil, "", apperr.FromStore(err, "user not found")
	}
	r.logger.FromContext(ctx).Info("User token issued", map[string]interface{}{
		"user_id": user.ID.String(),
		"rotated": user.HasActiveToken(),
	})
	return updated, raw, nil
}

// RevokeUserToken revokes the operator's token; revoking twice is a conflict
func (r *Registry) RevokeUserToken(ctx context.Context, user *db.User) error {
	ok, err := r.store.RevokeUserToken(ctx, user.ID)
	if err != nil {
		return apperr.FromStore(err, "user not found")
	}
	if !ok {
		return apperr.Conflict("token already revoked")
	}
	r.logger.FromContext(ctx).Info("User token revoked", map[string]interface{}{
		"user_id": user.ID.String(),
	})
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if len(email) < 3 || len(email) > 254 || at <= 0 || at == len(email)-1 {
		return apperr.Validation("email", "must be a valid email address")
	}
	return nil
}
