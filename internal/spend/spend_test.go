package spend_test

import (
	"context"
	"testing"
	"time"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/spend"
	testutil "github.com/jarvis/MissionControl/api/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary_Windows(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()

	user, err := testutil.CreateTestUser(ctx, store, "ops@example.com")
	require.NoError(t, err)
	alpha, err := testutil.CreateTestAgent(ctx, store, user, "alpha")
	require.NoError(t, err)
	beta, err := testutil.CreateTestAgent(ctx, store, user, "beta")
	require.NoError(t, err)
	idle, err := testutil.CreateTestAgent(ctx, store, user, "idle")
	require.NoError(t, err)

	outsider, err := testutil.CreateTestUser(ctx, store, "other@example.com")
	require.NoError(t, err)
	foreign, err := testutil.CreateTestAgent(ctx, store, outsider, "foreign")
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	record := func(at time.Time, agent db.Agent, cost float64) {
		store.SetClock(func() time.Time { return at })
		require.NoError(t, store.InsertEvent(ctx, &db.Event{
			AgentID: agent.ID, Type: db.EventTypeAction, Message: "work", Cost: cost,
		}))
	}
	record(now.AddDate(0, -1, 0), *alpha, 100)
	record(now.AddDate(0, 0, -3), *alpha, 2)
	record(now.AddDate(0, 0, -2), *beta, 5)
	record(now.Add(-time.Hour), *alpha, 1.5)
	record(now.Add(-time.Hour), *foreign, 40)

	svc := spend.NewService(store, logging.NewNop()).WithClock(func() time.Time { return now })
	summary, err := svc.Summary(ctx, user)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, summary.Daily, 1e-9)
	assert.InDelta(t, 8.5, summary.Monthly, 1e-9)
	assert.Equal(t, 1000.0, summary.Budget)

	require.Len(t, summary.AgentBreakdown, 3)
	assert.Equal(t, "beta", summary.AgentBreakdown[0].AgentName)
	assert.Equal(t, "alpha", summary.AgentBreakdown[1].AgentName)
	assert.InDelta(t, 3.5, summary.AgentBreakdown[1].Spend, 1e-9)
	assert.Equal(t, idle.ID, summary.AgentBreakdown[2].AgentID)
	assert.Zero(t, summary.AgentBreakdown[2].Spend)
}

func TestUpdateBudget(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	user, err := testutil.CreateTestUser(ctx, store, "ops@example.com")
	require.NoError(t, err)
	svc := spend.NewService(store, logging.NewNop())

	summary, err := svc.UpdateBudget(ctx, user, 42.5)
	require.NoError(t, err)
	assert.Equal(t, 42.5, summary.Budget)

	_, err = svc.UpdateBudget(ctx, user, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.UpdateBudget(ctx, user, -3)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
