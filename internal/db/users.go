package db

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, email, workspace_id, monthly_budget::float8 AS monthly_budget, api_token_hash,
	api_token_issued_at, api_token_last_rotated_at, api_token_revoked_at, api_token_last_used_at, created_at`

// CreateWorkspace inserts a workspace
func (q *Queries) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	return q.get(ctx, &ws.CreatedAt,
		`INSERT INTO workspaces (id, name) VALUES ($1, $2) RETURNING created_at`,
		ws.ID, ws.Name)
}

// CreateUser inserts a user without a token
func (q *Queries) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return q.get(ctx, &user.CreatedAt, `
		INSERT INTO users (id, email, workspace_id, monthly_budget)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		user.ID, user.Email, user.WorkspaceID, user.MonthlyBudget)
}

// GetUser gets a user by ID
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := q.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail gets a user by case-insensitive email
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := q.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByTokenHash resolves an active (non-revoked) user token
func (q *Queries) GetUserByTokenHash(ctx context.Context, hash string) (*User, error) {
	var user User
	err := q.get(ctx, &user, `
		SELECT `+userColumns+`
		FROM users
		WHERE api_token_hash = $1 AND api_token_revoked_at IS NULL`, hash)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TouchUserToken stamps the last use of the user's token
func (q *Queries) TouchUserToken(ctx context.Context, userID uuid.UUID) error {
	_, err := q.exec(ctx, `UPDATE users SET api_token_last_used_at = now() WHERE id = $1`, userID)
	return err
}

// SetUserToken replaces the user's token hash, clearing any revocation. The
// rotation stamp is set when rotated and cleared otherwise.
func (q *Queries) SetUserToken(ctx context.Context, userID uuid.UUID, hash string, rotated bool) (*User, error) {
	var user User
	err := q.get(ctx, &user, `
		UPDATE users
		SET api_token_hash = $2,
			api_token_issued_at = now(),
			api_token_last_rotated_at = CASE WHEN $3 THEN now() ELSE NULL END,
			api_token_revoked_at = NULL,
			api_token_last_used_at = NULL
		WHERE id = $1
		RETURNING `+userColumns, userID, hash, rotated)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RevokeUserToken revokes the active token; false when none was active
func (q *Queries) RevokeUserToken(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := q.exec(ctx, `
		UPDATE users SET api_token_revoked_at = now()
		WHERE id = $1 AND api_token_hash IS NOT NULL AND api_token_revoked_at IS NULL`, userID)
	return n > 0, err
}

// UpdateMonthlyBudget sets the user's monthly budget
func (q *Queries) UpdateMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) (*User, error) {
	var user User
	err := q.get(ctx, &user,
		`UPDATE users SET monthly_budget = $2 WHERE id = $1 RETURNING `+userColumns,
		userID, budget)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
