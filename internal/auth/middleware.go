package auth

import (
	"net/http"
	"strings"

	"github.com/jarvis/MissionControl/api/internal/apperr"
)

// Header names carrying credentials
const (
	AgentTokenHeader        = "X-Agent-Token"
	ControlPlaneTokenHeader = "X-Control-Plane-Token"
)

// ErrorWriter renders an authentication failure
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AgentMiddleware authenticates agents by the X-Agent-Token header
func AgentMiddleware(registry *Registry, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID, err := registry.ResolveAgent(r.Context(), r.Header.Get(AgentTokenHeader))
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetAgentID(r.Context(), agentID)))
		})
	}
}

// UserMiddleware authenticates operators by Authorization: Bearer
func UserMiddleware(registry *Registry, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight carries no credentials
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, err := ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, apperr.Unauthenticated())
				return
			}
			user, err := registry.ResolveUser(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
		})
	}
}

// ControlPlaneMiddleware authenticates provisioning calls by a control-plane JWT
func ControlPlaneMiddleware(cp *ControlPlane, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(ControlPlaneTokenHeader))
			if token == "" || cp == nil {
				writeError(w, r, apperr.Unauthenticated())
				return
			}
			claims, err := cp.ValidateToken(token)
			if err != nil {
				writeError(w, r, apperr.Unauthenticated())
				return
			}
			next.ServeHTTP(w, r.WithContext(SetClaims(r.Context(), claims)))
		})
	}
}
