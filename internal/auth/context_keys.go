package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/db"
)

/* Context key types for type-safe context values */
type contextKey string

const (
	agentIDKey contextKey = "agent_id"
	userKey    contextKey = "user"
	claimsKey  contextKey = "claims"
)

/* SetAgentID sets the authenticated agent in context */
func SetAgentID(ctx context.Context, agentID uuid.UUID) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

/* AgentIDFromContext gets the authenticated agent from context */
func AgentIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	agentID, ok := ctx.Value(agentIDKey).(uuid.UUID)
	return agentID, ok
}

/* SetUser sets the authenticated operator in context */
func SetUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

/* UserFromContext gets the authenticated operator from context */
func UserFromContext(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userKey).(*db.User)
	return user, ok && user != nil
}

/* SetClaims sets control-plane claims in context */
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

/* ClaimsFromContext gets control-plane claims from context */
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
