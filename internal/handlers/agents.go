package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/relay"
	"github.com/jarvis/MissionControl/api/internal/validation"
)

/* AgentHandlers serves the operator's agent registry */
type AgentHandlers struct {
	relay    *relay.Service
	registry *auth.Registry
	fail     auth.ErrorWriter
}

/* NewAgentHandlers creates new agent handlers */
func NewAgentHandlers(relaySvc *relay.Service, registry *auth.Registry, fail auth.ErrorWriter) *AgentHandlers {
	return &AgentHandlers{relay: relaySvc, registry: registry, fail: fail}
}

type agentStatusRequest struct {
	Status string `json:"status"`
}

/* ListAgents lists the workspace's agents */
func (h *AgentHandlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agents, err := h.relay.ListAgents(r.Context(), user.WorkspaceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, agents, http.StatusOK)
}

/* CreateAgent registers an agent and returns its token once */
func (h *AgentHandlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in relay.AgentInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.relay.CreateAgent(r.Context(), user, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, created, http.StatusCreated)
}

/* GetAgent gets a single agent */
func (h *AgentHandlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agentID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agent, err := h.relay.GetAgent(r.Context(), user.WorkspaceID, agentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, agent, http.StatusOK)
}

/* UpdateAgentStatus applies the operator's status override */
func (h *AgentHandlers) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agentID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req agentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	agent, err := h.relay.SetAgentStatus(r.Context(), user.WorkspaceID, agentID, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, agent, http.StatusOK)
}

/* RevokeAgentToken revokes every active token of the agent */
func (h *AgentHandlers) RevokeAgentToken(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agentID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.registry.RevokeAgent(r.Context(), agentID, user.WorkspaceID); err != nil {
		h.fail(w, r, err)
		return
	}
	WriteNoContent(w)
}

/* ListAgentEvents lists one agent's events, newest first */
func (h *AgentHandlers) ListAgentEvents(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agentID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := validation.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if limit == 0 {
		limit = relay.DefaultAgentEventsLimit
	}
	events, err := h.relay.ListEvents(r.Context(), user.WorkspaceID, &agentID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, events, http.StatusOK)
}
