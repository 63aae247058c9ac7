package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.Equal(t, ErrNotFound, classify(sql.ErrNoRows))
	assert.ErrorIs(t, classify(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "commands_source_task_id_key"}
	err := classify(fmt.Errorf("insert: %w", dup))
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "commands_source_task_id_key")

	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40001"}), ErrUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), ErrUnavailable)
	assert.ErrorIs(t, classify(sql.ErrConnDone), ErrUnavailable)

	check := &pgconn.PgError{Code: "23514"}
	assert.False(t, errors.Is(classify(check), ErrUniqueViolation))
	assert.False(t, errors.Is(classify(check), ErrUnavailable))
}

func TestQueries_UnreachableDatabase(t *testing.T) {
	conn, err := sqlx.Open("pgx", "postgres://relay@127.0.0.1:1/relay?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	defer conn.Close()
	q := NewQueries(conn, 2*time.Second)
	ctx := context.Background()

	assert.ErrorIs(t, q.Ping(ctx), ErrUnavailable)

	_, err = q.GetTaskStatus(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = q.RevokeAgentTokens(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUnavailable)

	called := false
	err = q.WithTx(ctx, func(Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements()
	require.NotEmpty(t, stmts)

	var sawCommands bool
	for _, stmt := range stmts {
		assert.NotContains(t, stmt, "--")
		if strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS commands") {
			sawCommands = true
			assert.Contains(t, stmt, "UNIQUE (source_task_id)")
		}
	}
	assert.True(t, sawCommands)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS workspaces"))
}

func TestStringList_Scan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["read config","open PR"]`)))
	assert.Equal(t, StringList{"read config", "open PR"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Equal(t, StringList{}, l)

	require.NoError(t, l.Scan("null"))
	assert.Equal(t, StringList{}, l)

	assert.Error(t, l.Scan(42))

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestJSONBMap_RoundTrip(t *testing.T) {
	v, err := JSONBMap{"decision": "approved"}.Value()
	require.NoError(t, err)

	var m JSONBMap
	require.NoError(t, m.Scan(v))
	assert.Equal(t, "approved", m["decision"])
}
