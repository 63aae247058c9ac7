package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/config"
	"github.com/jarvis/MissionControl/api/internal/handlers"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/middleware"
	testutil "github.com/jarvis/MissionControl/api/internal/testing"
	"github.com/stretchr/testify/require"
)

/* testServer holds a router over an in-memory store */
type testServer struct {
	store        *testutil.MemStore
	client       *testutil.TestClient
	controlToken string
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Agent-Token"},
		},
		Spend: config.SpendConfig{DefaultMonthlyBudget: 1000},
	}
}

/* setupTestServer creates a test HTTP server with all routes configured */
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	cp, err := auth.NewControlPlane("test-secret-key-for-testing-only", time.Hour)
	require.NoError(t, err)
	controlToken, err := cp.GenerateToken(time.Hour)
	require.NoError(t, err)

	limiter := middleware.NewRateLimiter(10000, time.Minute)
	t.Cleanup(limiter.Stop)

	store := testutil.NewMemStore()
	router := handlers.NewRouter(handlers.Deps{
		Config:       testConfig(),
		Logger:       logging.NewNop(),
		Store:        store,
		ControlPlane: cp,
		Limiter:      limiter,
	})

	return &testServer{
		store:        store,
		client:       testutil.NewTestClient(t, httptest.NewServer(router)),
		controlToken: controlToken,
	}
}

/* createUser provisions an operator through the control plane and returns its token */
func (s *testServer) createUser(t *testing.T, email string) handlers.UserTokenResponse {
	t.Helper()
	resp, err := s.client.AsControlPlane(s.controlToken).Post("/api/v1/users", map[string]interface{}{
		"email": email,
	})
	require.NoError(t, err)
	testutil.AssertStatus(t, resp, http.StatusCreated)

	var out handlers.UserTokenResponse
	require.NoError(t, testutil.ParseResponse(t, resp, &out))
	return out
}

type createdAgent struct {
	Agent struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		TokenHash string `json:"tokenHash"`
	} `json:"agent"`
	AgentToken string `json:"agentToken"`
}

/* createAgent registers an agent for the operator and returns the one-time token */
func (s *testServer) createAgent(t *testing.T, userToken, name string) createdAgent {
	t.Helper()
	resp, err := s.client.AsUser(userToken).Post("/api/v1/agents", map[string]interface{}{
		"name": name,
	})
	require.NoError(t, err)
	testutil.AssertStatus(t, resp, http.StatusCreated)

	var out createdAgent
	require.NoError(t, testutil.ParseResponse(t, resp, &out))
	return out
}

/* requestApproval posts an approval-request event as the agent and returns the task id */
func (s *testServer) requestApproval(t *testing.T, agentToken, action string) string {
	t.Helper()
	resp, err := s.client.AsAgent(agentToken).Post("/api/v1/events", map[string]interface{}{
		"type":             "approval_request",
		"message":          "about to " + action,
		"cost":             0.25,
		"requiresApproval": true,
		"proposedAction":   action,
		"completedActions": []string{"read config"},
	})
	require.NoError(t, err)
	testutil.AssertStatus(t, resp, http.StatusCreated)

	var out struct {
		TaskID *string `json:"taskId"`
	}
	require.NoError(t, testutil.ParseResponse(t, resp, &out))
	require.NotNil(t, out.TaskID)
	return *out.TaskID
}

func uuidMust(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
