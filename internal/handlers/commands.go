package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/relay"
	"github.com/jarvis/MissionControl/api/internal/validation"
)

// CommandHandlers serves the agent-facing command outbox
type CommandHandlers struct {
	relay *relay.Service
	fail  auth.ErrorWriter
}

// NewCommandHandlers creates new command handlers
func NewCommandHandlers(relaySvc *relay.Service, fail auth.ErrorWriter) *CommandHandlers {
	return &CommandHandlers{relay: relaySvc, fail: fail}
}

// ListCommands returns the agent's pending commands, oldest first
func (h *CommandHandlers) ListCommands(w http.ResponseWriter, r *http.Request) {
	agentID, err := currentAgent(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	since, err := validation.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cmds, err := h.relay.ListCommands(r.Context(), agentID, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, cmds, http.StatusOK)
}

// AckCommand acknowledges one of the agent's commands
func (h *CommandHandlers) AckCommand(w http.ResponseWriter, r *http.Request) {
	agentID, err := currentAgent(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	commandID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cmd, err := h.relay.AckCommand(r.Context(), agentID, commandID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, cmd, http.StatusOK)
}
