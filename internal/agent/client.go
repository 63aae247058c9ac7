// Package agent is the client an agent process uses to talk to the relay:
// report events, request approval, then poll for and acknowledge the
// operator's decision.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/relay"
)

// Client provides HTTP access to the relay as one agent
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client authenticating with the agent's raw token
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the relay
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Decision is the operator's verdict as delivered to the agent
type Decision struct {
	CommandID uuid.UUID
	TaskID    uuid.UUID
	Approved  bool
	Comment   string
}

// ReportEvent sends one event
func (c *Client) ReportEvent(ctx context.Context, in relay.EventInput) (*relay.IngestResult, error) {
	var result relay.IngestResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/events", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RequestApproval reports an approval request and returns the task to wait on
func (c *Client) RequestApproval(ctx context.Context, message, proposedAction string, completed []string, cost float64) (uuid.UUID, error) {
	result, err := c.ReportEvent(ctx, relay.EventInput{
		Type:             db.EventTypeApprovalRequest,
		Message:          message,
		Cost:             cost,
		RequiresApproval: true,
		ProposedAction:   &proposedAction,
		CompletedActions: completed,
	})
	if err != nil {
		return uuid.Nil, err
	}
	if result.TaskID == nil {
		return uuid.Nil, fmt.Errorf("relay created no approval task for event %s", result.Event.ID)
	}
	return *result.TaskID, nil
}

// PollCommands lists pending commands, oldest first, created at or after since when set
func (c *Client) PollCommands(ctx context.Context, since *time.Time) ([]db.Command, error) {
	path := "/api/v1/commands"
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	cmds := []db.Command{}
	if err := c.do(ctx, http.MethodGet, path, nil, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// AckCommand acknowledges a command so it is not delivered again
func (c *Client) AckCommand(ctx context.Context, commandID uuid.UUID) (*db.Command, error) {
	var cmd db.Command
	if err := c.do(ctx, http.MethodPost, "/api/v1/commands/"+commandID.String()+"/ack", nil, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// DefaultPollInterval is used when WaitForDecision is given a non-positive interval
const DefaultPollInterval = 2 * time.Second

// WaitForDecision polls until the decision for taskID arrives, acknowledges
// it and returns it. Commands for other tasks are left pending.
func (c *Client) WaitForDecision(ctx context.Context, taskID uuid.UUID, interval time.Duration) (*Decision, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cmds, err := c.PollCommands(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, cmd := range cmds {
			if cmd.Kind != db.CommandKindApprovalDecision || cmd.SourceTaskID == nil || *cmd.SourceTaskID != taskID {
				continue
			}
			if _, err := c.AckCommand(ctx, cmd.ID); err != nil {
				return nil, err
			}
			return decisionFromCommand(cmd), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func decisionFromCommand(cmd db.Command) *Decision {
	d := &Decision{CommandID: cmd.ID, TaskID: *cmd.SourceTaskID}
	if v, ok := cmd.Payload["decision"].(string); ok {
		d.Approved = v == db.TaskStatusApproved
	}
	if v, ok := cmd.Payload["comment"].(string); ok {
		d.Comment = v
	}
	return d
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(auth.AgentTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
