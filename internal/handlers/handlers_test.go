package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/handlers"
	testutil "github.com/jarvis/MissionControl/api/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readError(t *testing.T, resp *http.Response, expected int) handlers.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, expected, resp.StatusCode)
	var body handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

type inboxItem struct {
	ID               string   `json:"id"`
	AgentID          string   `json:"agentId"`
	AgentName        string   `json:"agentName"`
	ProposedAction   string   `json:"proposedAction"`
	CompletedActions []string `json:"completedActions"`
	Status           string   `json:"status"`
	Comment          *string  `json:"comment"`
	DecidedBy        string   `json:"decidedBy"`
}

type command struct {
	ID           string                 `json:"id"`
	AgentID      string                 `json:"agentId"`
	SourceTaskID string                 `json:"sourceTaskId"`
	Kind         string                 `json:"kind"`
	Payload      map[string]interface{} `json:"payload"`
	Status       string                 `json:"status"`
	CreatedAt    string                 `json:"createdAt"`
}

func TestApprovalRoundTrip(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "deployer")
	assert.Equal(t, db.AgentStatusIdle, agent.Agent.Status)
	assert.Regexp(t, `^sha256:[0-9a-f]{8}\.\.\.[0-9a-f]{4}$`, agent.Agent.TokenHash)

	taskID := s.requestApproval(t, agent.AgentToken, "restart prod")
	user := s.client.AsUser(operator.UserToken)
	bot := s.client.AsAgent(agent.AgentToken)

	t.Run("agent waits for approval", func(t *testing.T) {
		resp, err := user.Get("/api/v1/agents/" + agent.Agent.ID)
		require.NoError(t, err)
		var got struct {
			Status string `json:"status"`
		}
		require.NoError(t, testutil.ParseResponse(t, resp, &got))
		assert.Equal(t, db.AgentStatusWaitingApproval, got.Status)
	})

	t.Run("inbox lists pending task", func(t *testing.T) {
		resp, err := user.Get("/api/v1/inbox?status=pending")
		require.NoError(t, err)
		var items []inboxItem
		require.NoError(t, testutil.ParseResponse(t, resp, &items))
		require.Len(t, items, 1)
		assert.Equal(t, taskID, items[0].ID)
		assert.Equal(t, "deployer", items[0].AgentName)
		assert.Equal(t, "restart prod", items[0].ProposedAction)
		assert.Equal(t, []string{"read config"}, items[0].CompletedActions)
	})

	t.Run("decision is relayed as a command", func(t *testing.T) {
		resp, err := user.Post("/api/v1/inbox/"+taskID+"/decision", map[string]interface{}{
			"decision": "approved",
			"comment":  "go ahead",
		})
		require.NoError(t, err)
		var item inboxItem
		require.NoError(t, testutil.ParseResponse(t, resp, &item))
		assert.Equal(t, db.TaskStatusApproved, item.Status)
		require.NotNil(t, item.Comment)
		assert.Equal(t, "go ahead", *item.Comment)
		assert.Equal(t, operator.UserID.String(), item.DecidedBy)

		resp, err = bot.Get("/api/v1/commands")
		require.NoError(t, err)
		var cmds []command
		require.NoError(t, testutil.ParseResponse(t, resp, &cmds))
		require.Len(t, cmds, 1)
		assert.Equal(t, db.CommandKindApprovalDecision, cmds[0].Kind)
		assert.Equal(t, taskID, cmds[0].SourceTaskID)
		assert.Equal(t, "approved", cmds[0].Payload["decision"])
		assert.Equal(t, "go ahead", cmds[0].Payload["comment"])

		resp, err = bot.Post("/api/v1/commands/"+cmds[0].ID+"/ack", nil)
		require.NoError(t, err)
		var acked command
		require.NoError(t, testutil.ParseResponse(t, resp, &acked))
		assert.Equal(t, db.CommandStatusAcked, acked.Status)

		resp, err = bot.Get("/api/v1/commands")
		require.NoError(t, err)
		require.NoError(t, testutil.ParseResponse(t, resp, &cmds))
		assert.Empty(t, cmds)
	})

	t.Run("second decision conflicts", func(t *testing.T) {
		resp, err := user.Post("/api/v1/inbox/"+taskID+"/decision", map[string]interface{}{
			"decision": "rejected",
		})
		require.NoError(t, err)
		body := readError(t, resp, http.StatusConflict)
		assert.Equal(t, "CONFLICT", body.Code)
		assert.Len(t, s.store.Commands(), 1)
	})

	t.Run("agent resumes running", func(t *testing.T) {
		stored, ok := s.store.Agent(uuidMust(t, agent.Agent.ID))
		require.True(t, ok)
		assert.Equal(t, db.AgentStatusRunning, stored.Status)
	})
}

func TestAuthentication(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "worker")

	tests := []struct {
		name   string
		client *testutil.TestClient
		method string
		path   string
	}{
		{"no credentials", s.client, http.MethodGet, "/api/v1/agents"},
		{"bad user token", s.client.AsUser("nope"), http.MethodGet, "/api/v1/inbox"},
		{"agent token on user route", s.client.AsAgent(agent.AgentToken), http.MethodGet, "/api/v1/inbox"},
		{"user token on agent route", s.client.AsUser(operator.UserToken), http.MethodGet, "/api/v1/commands"},
		{"user token on control plane route", s.client.AsUser(operator.UserToken), http.MethodPost, "/api/v1/users"},
		{"forged control plane token", s.client.AsControlPlane("a.b.c"), http.MethodPost, "/api/v1/user-token/issue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.client.Do(tt.method, tt.path, map[string]string{"email": "x@example.com"})
			require.NoError(t, err)
			body := readError(t, resp, http.StatusUnauthorized)
			assert.Equal(t, "AUTHENTICATION_ERROR", body.Code)
			assert.Equal(t, "invalid or missing credentials", body.Message)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestEventIngestion(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "worker")
	bot := s.client.AsAgent(agent.AgentToken)

	t.Run("plain event", func(t *testing.T) {
		resp, err := bot.Post("/api/v1/events", map[string]interface{}{
			"type": "action", "message": "did a thing", "cost": 1.5,
		})
		require.NoError(t, err)
		var out struct {
			Event struct {
				ID      string  `json:"id"`
				AgentID string  `json:"agentId"`
				Cost    float64 `json:"cost"`
			} `json:"event"`
			TaskID *string `json:"taskId"`
		}
		testutil.AssertStatus(t, resp, http.StatusCreated)
		require.NoError(t, testutil.ParseResponse(t, resp, &out))
		assert.Equal(t, agent.Agent.ID, out.Event.AgentID)
		assert.Equal(t, 1.5, out.Event.Cost)
		assert.Nil(t, out.TaskID)
	})

	t.Run("approval without proposed action", func(t *testing.T) {
		before := len(s.store.Events())
		resp, err := bot.Post("/api/v1/events", map[string]interface{}{
			"type": "approval_request", "message": "may I?", "requiresApproval": true, "proposedAction": "  ",
		})
		require.NoError(t, err)
		body := readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
		assert.Equal(t, "proposedAction", body.Details["field"])
		assert.Len(t, s.store.Events(), before+1, "the event itself is kept")
	})

	t.Run("validation", func(t *testing.T) {
		resp, err := bot.Post("/api/v1/events", map[string]interface{}{
			"type": "gossip", "message": "hi",
		})
		require.NoError(t, err)
		body := readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "type", body.Details["field"])

		resp, err = bot.Post("/api/v1/events", map[string]interface{}{
			"type": "action", "message": "hi", "cost": "lots",
		})
		require.NoError(t, err)
		body = readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "cost", body.Details["field"])
	})

	t.Run("listing", func(t *testing.T) {
		user := s.client.AsUser(operator.UserToken)
		resp, err := user.Get("/api/v1/events?limit=1")
		require.NoError(t, err)
		var events []map[string]interface{}
		require.NoError(t, testutil.ParseResponse(t, resp, &events))
		assert.Len(t, events, 1)

		resp, err = user.Get("/api/v1/agents/" + agent.Agent.ID + "/events")
		require.NoError(t, err)
		require.NoError(t, testutil.ParseResponse(t, resp, &events))
		assert.Len(t, events, 2)

		resp, err = user.Get("/api/v1/events?limit=501")
		require.NoError(t, err)
		readError(t, resp, http.StatusBadRequest)
	})
}

func TestWorkspaceIsolation(t *testing.T) {
	s := setupTestServer(t)
	alice := s.createUser(t, "alice@example.com")
	bob := s.createUser(t, "bob@example.com")
	agent := s.createAgent(t, alice.UserToken, "alice-bot")
	taskID := s.requestApproval(t, agent.AgentToken, "drop table")

	intruder := s.client.AsUser(bob.UserToken)
	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/v1/agents/" + agent.Agent.ID, nil},
		{http.MethodGet, "/api/v1/agents/" + agent.Agent.ID + "/events", nil},
		{http.MethodGet, "/api/v1/inbox/" + taskID, nil},
		{http.MethodPost, "/api/v1/inbox/" + taskID + "/decision", map[string]string{"decision": "approved"}},
		{http.MethodPatch, "/api/v1/agents/" + agent.Agent.ID + "/status", map[string]string{"status": "paused"}},
		{http.MethodPost, "/api/v1/agents/" + agent.Agent.ID + "/revoke-token", nil},
	}
	for _, p := range paths {
		resp, err := intruder.Do(p.method, p.path, p.body)
		require.NoError(t, err)
		body := readError(t, resp, http.StatusNotFound)
		assert.Equal(t, "NOT_FOUND", body.Code, p.path)
	}

	resp, err := intruder.Get("/api/v1/inbox")
	require.NoError(t, err)
	var items []inboxItem
	require.NoError(t, testutil.ParseResponse(t, resp, &items))
	assert.Empty(t, items)
	assert.Empty(t, s.store.Commands())
}

func TestAgentManagement(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "worker")
	user := s.client.AsUser(operator.UserToken)

	t.Run("create validation", func(t *testing.T) {
		resp, err := user.Post("/api/v1/agents", map[string]interface{}{"name": ""})
		require.NoError(t, err)
		body := readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "name", body.Details["field"])
	})

	t.Run("list", func(t *testing.T) {
		resp, err := user.Get("/api/v1/agents")
		require.NoError(t, err)
		var agents []map[string]interface{}
		require.NoError(t, testutil.ParseResponse(t, resp, &agents))
		require.Len(t, agents, 1)
		assert.Equal(t, "worker", agents[0]["name"])
		assert.Contains(t, agents[0], "totalSpend")
		assert.Contains(t, agents[0], "eventsCount")
	})

	t.Run("status override", func(t *testing.T) {
		resp, err := user.Patch("/api/v1/agents/"+agent.Agent.ID+"/status", map[string]string{"status": "paused"})
		require.NoError(t, err)
		var got map[string]interface{}
		require.NoError(t, testutil.ParseResponse(t, resp, &got))
		assert.Equal(t, "paused", got["status"])

		resp, err = user.Patch("/api/v1/agents/"+agent.Agent.ID+"/status", map[string]string{"status": "waiting_approval"})
		require.NoError(t, err)
		readError(t, resp, http.StatusBadRequest)
	})

	t.Run("malformed id", func(t *testing.T) {
		resp, err := user.Get("/api/v1/agents/not-a-uuid")
		require.NoError(t, err)
		body := readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "id", body.Details["field"])
	})

	t.Run("revoke token", func(t *testing.T) {
		resp, err := user.Post("/api/v1/agents/"+agent.Agent.ID+"/revoke-token", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = s.client.AsAgent(agent.AgentToken).Get("/api/v1/commands")
		require.NoError(t, err)
		readError(t, resp, http.StatusUnauthorized)

		resp, err = user.Get("/api/v1/agents/" + agent.Agent.ID)
		require.NoError(t, err)
		var got map[string]interface{}
		require.NoError(t, testutil.ParseResponse(t, resp, &got))
		assert.Equal(t, "revoked", got["tokenHash"])
	})
}

func TestUserTokens(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	assert.NotNil(t, operator.IssuedAt)
	assert.Nil(t, operator.RotatedAt)
	assert.Equal(t, 1000.0, operator.MonthlyBudget)

	t.Run("duplicate email", func(t *testing.T) {
		resp, err := s.client.AsControlPlane(s.controlToken).Post("/api/v1/users", map[string]string{"email": "OPS@example.com"})
		require.NoError(t, err)
		readError(t, resp, http.StatusConflict)
	})

	t.Run("rotate", func(t *testing.T) {
		resp, err := s.client.AsUser(operator.UserToken).Post("/api/v1/user-token/rotate", nil)
		require.NoError(t, err)
		var rotated handlers.UserTokenResponse
		require.NoError(t, testutil.ParseResponse(t, resp, &rotated))
		assert.NotEqual(t, operator.UserToken, rotated.UserToken)
		assert.NotNil(t, rotated.RotatedAt)

		resp, err = s.client.AsUser(operator.UserToken).Get("/api/v1/agents")
		require.NoError(t, err)
		readError(t, resp, http.StatusUnauthorized)

		operator = rotated
	})

	t.Run("revoke", func(t *testing.T) {
		resp, err := s.client.AsUser(operator.UserToken).Post("/api/v1/user-token/revoke", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = s.client.AsUser(operator.UserToken).Get("/api/v1/agents")
		require.NoError(t, err)
		readError(t, resp, http.StatusUnauthorized)
	})

	t.Run("control plane reissues", func(t *testing.T) {
		resp, err := s.client.AsControlPlane(s.controlToken).Post("/api/v1/user-token/issue", map[string]string{"email": "ops@example.com"})
		require.NoError(t, err)
		testutil.AssertStatus(t, resp, http.StatusCreated)
		var issued handlers.UserTokenResponse
		require.NoError(t, testutil.ParseResponse(t, resp, &issued))
		assert.Nil(t, issued.RotatedAt, "no active token existed")

		resp, err = s.client.AsUser(issued.UserToken).Get("/api/v1/agents")
		require.NoError(t, err)
		testutil.AssertStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("unknown email", func(t *testing.T) {
		resp, err := s.client.AsControlPlane(s.controlToken).Post("/api/v1/user-token/issue", map[string]string{"email": "ghost@example.com"})
		require.NoError(t, err)
		readError(t, resp, http.StatusNotFound)
	})
}

func TestSpend(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "worker")
	user := s.client.AsUser(operator.UserToken)

	resp, err := s.client.AsAgent(agent.AgentToken).Post("/api/v1/events", map[string]interface{}{
		"type": "tool_call", "message": "llm call", "cost": 2.5,
	})
	require.NoError(t, err)
	testutil.AssertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	type spendView struct {
		Daily          float64 `json:"daily"`
		Monthly        float64 `json:"monthly"`
		Budget         float64 `json:"budget"`
		AgentBreakdown []struct {
			AgentName string  `json:"agentName"`
			Spend     float64 `json:"spend"`
		} `json:"agentBreakdown"`
	}

	resp, err = user.Get("/api/v1/spend")
	require.NoError(t, err)
	var view spendView
	require.NoError(t, testutil.ParseResponse(t, resp, &view))
	assert.Equal(t, 2.5, view.Daily)
	assert.Equal(t, 2.5, view.Monthly)
	assert.Equal(t, 1000.0, view.Budget)
	require.Len(t, view.AgentBreakdown, 1)
	assert.Equal(t, "worker", view.AgentBreakdown[0].AgentName)

	resp, err = user.Patch("/api/v1/spend/budget", map[string]float64{"budget": 250})
	require.NoError(t, err)
	require.NoError(t, testutil.ParseResponse(t, resp, &view))
	assert.Equal(t, 250.0, view.Budget)

	for _, body := range []interface{}{map[string]float64{"budget": 0}, map[string]string{}} {
		resp, err = user.Patch("/api/v1/spend/budget", body)
		require.NoError(t, err)
		errBody := readError(t, resp, http.StatusBadRequest)
		assert.Equal(t, "budget", errBody.Details["field"])
	}
}

func TestCommandsSince(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")
	agent := s.createAgent(t, operator.UserToken, "worker")
	bot := s.client.AsAgent(agent.AgentToken)

	resp, err := bot.Get("/api/v1/commands?since=yesterday")
	require.NoError(t, err)
	body := readError(t, resp, http.StatusBadRequest)
	assert.Equal(t, "since", body.Details["field"])

	resp, err = bot.Get("/api/v1/commands?since=2000-01-01T00:00:00Z")
	require.NoError(t, err)
	var cmds []command
	require.NoError(t, testutil.ParseResponse(t, resp, &cmds))
	assert.Empty(t, cmds)

	resp, err = bot.Post("/api/v1/commands/6f1c2a8e-3b0c-4d8e-9a55-0c7f4a6b1e22/ack", nil)
	require.NoError(t, err)
	readError(t, resp, http.StatusNotFound)
}

func TestStorageUnavailable(t *testing.T) {
	s := setupTestServer(t)
	operator := s.createUser(t, "ops@example.com")

	s.store.SetUnavailable(db.ErrUnavailable)
	defer s.store.SetUnavailable(nil)

	resp, err := s.client.AsUser(operator.UserToken).Get("/api/v1/inbox")
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	body := readError(t, resp, http.StatusServiceUnavailable)
	assert.Equal(t, "STORAGE_UNAVAILABLE", body.Code)

	resp, err = s.client.Get("/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	s := setupTestServer(t)

	resp, err := s.client.Get("/healthz")
	require.NoError(t, err)
	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, testutil.ParseResponse(t, resp, &health))
	assert.Equal(t, "healthy", health.Status)

	resp, err = s.client.Get("/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.client.Get("/api/v1/nowhere")
	require.NoError(t, err)
	readError(t, resp, http.StatusNotFound)

	resp, err = s.client.Do(http.MethodDelete, "/api/v1/inbox", nil)
	require.NoError(t, err)
	readError(t, resp, http.StatusMethodNotAllowed)

	req, err := http.NewRequest(http.MethodOptions, s.client.Server.URL+"/api/v1/inbox", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/v1/inbox"},
		{http.MethodPut, "/api/v1/agents"},
		{http.MethodDelete, "/api/v1/events"},
		{http.MethodGet, "/api/v1/spend/budget"},
		{http.MethodPost, "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := s.client.Do(tt.method, tt.path, nil)
			require.NoError(t, err)
			body := readError(t, resp, http.StatusMethodNotAllowed)
			assert.Equal(t, "METHOD_NOT_ALLOWED", body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	resp, err := s.client.Get("/api/v1/agents/00000000-0000-0000-0000-000000000001/nowhere")
	require.NoError(t, err)
	body := readError(t, resp, http.StatusNotFound)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.NotEmpty(t, body.RequestID)
}
