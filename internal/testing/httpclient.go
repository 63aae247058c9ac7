package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestClient provides HTTP client for testing with authentication
type TestClient struct {
	Server       *httptest.Server
	UserToken    string
	AgentToken   string
	ControlToken string
}

// NewTestClient wraps a test server and closes it when the test ends
func NewTestClient(t *testing.T, server *httptest.Server) *TestClient {
	t.Helper()
	t.Cleanup(server.Close)
	return &TestClient{Server: server}
}

// AsUser returns a copy of the client sending only the operator bearer token
func (tc *TestClient) AsUser(token string) *TestClient {
	return &TestClient{Server: tc.Server, UserToken: token}
}

// AsAgent returns a copy of the client sending only the agent token
func (tc *TestClient) AsAgent(token string) *TestClient {
	return &TestClient{Server: tc.Server, AgentToken: token}
}

// AsControlPlane returns a copy of the client sending only the control-plane token
func (tc *TestClient) AsControlPlane(token string) *TestClient {
	return &TestClient{Server: tc.Server, ControlToken: token}
}

// Do performs an HTTP request
func (tc *TestClient) Do(method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, tc.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.UserToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.UserToken)
	}
	if tc.AgentToken != "" {
		req.Header.Set("X-Agent-Token", tc.AgentToken)
	}
	if tc.ControlToken != "" {
		req.Header.Set("X-Control-Plane-Token", tc.ControlToken)
	}

	return http.DefaultClient.Do(req)
}

// Get performs a GET request
func (tc *TestClient) Get(path string) (*http.Response, error) {
	return tc.Do(http.MethodGet, path, nil)
}

// Post performs a POST request
func (tc *TestClient) Post(path string, body interface{}) (*http.Response, error) {
	return tc.Do(http.MethodPost, path, body)
}

// Patch performs a PATCH request
func (tc *TestClient) Patch(path string, body interface{}) (*http.Response, error) {
	return tc.Do(http.MethodPatch, path, body)
}

// ParseResponse parses JSON response
func ParseResponse(t *testing.T, resp *http.Response, v interface{}) error {
	t.Helper()

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// AssertStatus asserts response status code
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()

	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(body))
	}
}
