package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/validation"
)

func currentUser(r *http.Request) (*db.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	return user, nil
}

func currentAgent(r *http.Request) (uuid.UUID, error) {
	agentID, ok := auth.AgentIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, apperr.Unauthenticated()
	}
	return agentID, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return validation.ParseUUID(mux.Vars(r)["id"], "id")
}
