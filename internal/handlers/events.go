package handlers

import (
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/relay"
	"github.com/jarvis/MissionControl/api/internal/validation"
)

// EventHandlers serves event ingestion for agents and event listing for operators
type EventHandlers struct {
	relay *relay.Service
	fail  auth.ErrorWriter
}

// NewEventHandlers creates new event handlers
func NewEventHandlers(relaySvc *relay.Service, fail auth.ErrorWriter) *EventHandlers {
	return &EventHandlers{relay: relaySvc, fail: fail}
}

// IngestEvent records an event reported by the authenticated agent
func (h *EventHandlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	agentID, err := currentAgent(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in relay.EventInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.relay.IngestEvent(r.Context(), agentID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, result, http.StatusCreated)
}

// ListEvents lists workspace events, optionally for one agent
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
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
	events, err := h.relay.ListEvents(r.Context(), user.WorkspaceID, agentID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, events, http.StatusOK)
}
