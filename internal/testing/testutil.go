package testing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jmoiron/sqlx"
)

/* TestDB holds test database connection */
type TestDB struct {
	DB      *sqlx.DB
	Queries *db.Queries
}

/* SetupTestDB connects to TEST_DATABASE_URL and applies the schema; the test
 * is skipped when the variable is unset. */
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, dsn, db.PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tdb := &TestDB{DB: conn, Queries: db.NewQueries(conn, 2*time.Second)}
	tdb.truncate(t)
	t.Cleanup(func() {
		tdb.truncate(t)
		conn.Close()
	})
	return tdb
}

func (tdb *TestDB) truncate(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := tdb.DB.ExecContext(ctx,
		`TRUNCATE TABLE commands, tasks, events, agent_tokens, agents, users, workspaces CASCADE`)
	if err != nil {
		t.Logf("Warning: Failed to truncate tables: %v", err)
	}
}

/* CreateTestUser creates a user in a fresh workspace */
func CreateTestUser(ctx context.Context, store db.Store, email string) (*db.User, error) {
	ws := &db.Workspace{Name: email + "'s workspace"}
	if err := store.CreateWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	user := &db.User{Email: email, WorkspaceID: ws.ID, MonthlyBudget: 1000}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

/* CreateTestAgent registers an idle agent owned by user */
func CreateTestAgent(ctx context.Context, store db.Store, user *db.User, name string) (*db.Agent, error) {
	agent := &db.Agent{
		WorkspaceID: user.WorkspaceID,
		OwnerUserID: user.ID,
		Name:        name,
		Status:      db.AgentStatusIdle,
	}
	if err := store.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

/* CreateTestTask inserts an approval event and its pending task */
func CreateTestTask(ctx context.Context, store db.Store, agentID uuid.UUID, proposed string) (*db.Task, error) {
	event := &db.Event{
		AgentID:          agentID,
		Type:             db.EventTypeApprovalRequest,
		Message:          "needs approval",
		RequiresApproval: true,
		ProposedAction:   &proposed,
	}
	if err := store.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	task := &db.Task{AgentID: agentID, EventID: &event.ID, ProposedAction: proposed}
	if err := store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}
