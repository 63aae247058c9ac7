package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/relay"
	"github.com/jarvis/MissionControl/api/internal/validation"
)

// InboxHandlers serves the operator approval inbox
type InboxHandlers struct {
	relay *relay.Service
	fail  auth.ErrorWriter
}

// NewInboxHandlers creates new inbox handlers
func NewInboxHandlers(relaySvc *relay.Service, fail auth.ErrorWriter) *InboxHandlers {
	return &InboxHandlers{relay: relaySvc, fail: fail}
}

// ListInbox lists approval tasks, pending first
func (h *InboxHandlers) ListInbox(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	agentID, err := validation.ParseOptionalUUID(query.Get("agentId"), "agentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := validation.ParseLimit(query.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.relay.ListInbox(r.Context(), user.WorkspaceID, relay.InboxQuery{
		Status:  query.Get("status"),
		AgentID: agentID,
		Limit:   limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, items, http.StatusOK)
}

// GetInboxItem gets one approval task
func (h *InboxHandlers) GetInboxItem(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.relay.GetInboxItem(r.Context(), user.WorkspaceID, taskID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, item, http.StatusOK)
}

// Decide approves or rejects a pending task and relays the decision to its agent
func (h *InboxHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in relay.DecisionInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.relay.Decide(r.Context(), user, taskID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, item, http.StatusOK)
}
