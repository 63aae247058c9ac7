package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/db"
	testutil "github.com/jarvis/MissionControl/api/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries_DecideAndRelay(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()
	q := tdb.Queries

	user, err := testutil.CreateTestUser(ctx, q, "ops@example.com")
	require.NoError(t, err)
	agent, err := testutil.CreateTestAgent(ctx, q, user, "builder")
	require.NoError(t, err)
	task, err := testutil.CreateTestTask(ctx, q, agent.ID, "deploy to prod")
	require.NoError(t, err)

	agentID, ok, err := q.DecidePendingTask(ctx, db.Decision{
		TaskID: task.ID, WorkspaceID: user.WorkspaceID, Status: db.TaskStatusApproved, DecidedBy: user.ID,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.ID, agentID)

	_, ok, err = q.DecidePendingTask(ctx, db.Decision{
		TaskID: task.ID, WorkspaceID: user.WorkspaceID, Status: db.TaskStatusRejected, DecidedBy: user.ID,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := q.GetTaskStatus(ctx, task.ID, user.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusApproved, status)

	_, err = q.GetTaskStatus(ctx, task.ID, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)

	cmd := &db.Command{AgentID: agent.ID, SourceTaskID: &task.ID, Kind: db.CommandKindApprovalDecision,
		Payload: db.JSONBMap{"decision": "approved"}}
	require.NoError(t, q.InsertCommand(ctx, cmd))

	dup := &db.Command{AgentID: agent.ID, SourceTaskID: &task.ID, Kind: db.CommandKindApprovalDecision}
	assert.ErrorIs(t, q.InsertCommand(ctx, dup), db.ErrUniqueViolation)

	pending, err := q.ListPendingCommands(ctx, agent.ID, nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "approved", pending[0].Payload["decision"])

	future := time.Now().Add(time.Hour)
	pending, err = q.ListPendingCommands(ctx, agent.ID, &future)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = q.AckCommand(ctx, cmd.ID, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)

	acked, err := q.AckCommand(ctx, cmd.ID, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, db.CommandStatusAcked, acked.Status)
	assert.NotNil(t, acked.AckedAt)
}

func TestQueries_WithTxRollsBack(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()
	q := tdb.Queries

	user, err := testutil.CreateTestUser(ctx, q, "rollback@example.com")
	require.NoError(t, err)
	agent, err := testutil.CreateTestAgent(ctx, q, user, "worker")
	require.NoError(t, err)

	err = q.WithTx(ctx, func(tx db.Store) error {
		if err := tx.SetAgentStatus(ctx, agent.ID, db.AgentStatusPaused); err != nil {
			return err
		}
		return db.ErrUniqueViolation
	})
	assert.ErrorIs(t, err, db.ErrUniqueViolation)

	summary, err := q.GetAgentSummary(ctx, agent.ID, user.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, db.AgentStatusIdle, summary.Status)
}

func TestQueries_InboxOrdering(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()
	q := tdb.Queries

	user, err := testutil.CreateTestUser(ctx, q, "inbox@example.com")
	require.NoError(t, err)
	agent, err := testutil.CreateTestAgent(ctx, q, user, "scheduler")
	require.NoError(t, err)

	first, err := testutil.CreateTestTask(ctx, q, agent.ID, "first")
	require.NoError(t, err)
	_, err = testutil.CreateTestTask(ctx, q, agent.ID, "second")
	require.NoError(t, err)

	_, ok, err := q.DecidePendingTask(ctx, db.Decision{
		TaskID: first.ID, WorkspaceID: user.WorkspaceID, Status: db.TaskStatusRejected, DecidedBy: user.ID,
	})
	require.NoError(t, err)
	require.True(t, ok)

	items, err := q.ListInboxItems(ctx, db.InboxFilter{WorkspaceID: user.WorkspaceID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, db.TaskStatusPending, items[0].Status)
	assert.Equal(t, "scheduler", items[0].AgentName)
	assert.Equal(t, db.TaskStatusRejected, items[1].Status)

	count, err := q.CountPendingTasks(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
