package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/config"
	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/initialization"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/metrics"
	"github.com/jarvis/MissionControl/api/internal/middleware"
	"github.com/jarvis/MissionControl/api/internal/relay"
	"github.com/jarvis/MissionControl/api/internal/spend"
)

// Deps are the collaborators the HTTP surface is built from
type Deps struct {
	Config       *config.Config
	Logger       *logging.Logger
	Store        db.Store
	ControlPlane *auth.ControlPlane
	Limiter      *middleware.RateLimiter
}

// NewRouter wires every route with its authentication and the shared middleware chain
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	fail := NewErrorWriter(logger)

	registry := auth.NewRegistry(deps.Store, logger)
	relaySvc := relay.NewService(deps.Store, logger)
	spendSvc := spend.NewService(deps.Store, logger)

	// mux runs no middleware for unmatched requests
	notFound := middleware.RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteAppError(w, r, apperr.NotFound("route not found"))
	}))
	methodNotAllowed := middleware.RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	}))

	router := mux.NewRouter()
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = methodNotAllowed

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.LoggingMiddleware(logger))

	healthHandlers := NewHealthHandlers(initialization.NewHealthChecker(deps.Store, logger))
	router.HandleFunc("/healthz", healthHandlers.Health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed
	if deps.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}
	api.Use(middleware.RequestSizeMiddleware(deps.Config.Server.MaxBodyBytes))

	user := auth.UserMiddleware(registry, fail)
	agent := auth.AgentMiddleware(registry, fail)
	control := auth.ControlPlaneMiddleware(deps.ControlPlane, fail)

	userHandlers := NewUserHandlers(registry, deps.Config.Spend.DefaultMonthlyBudget, fail)
	api.Handle("/users", control(http.HandlerFunc(userHandlers.CreateUser))).Methods(http.MethodPost)
	api.Handle("/user-token/issue", control(http.HandlerFunc(userHandlers.IssueToken))).Methods(http.MethodPost)
	api.Handle("/user-token/rotate", user(http.HandlerFunc(userHandlers.RotateToken))).Methods(http.MethodPost)
	api.Handle("/user-token/revoke", user(http.HandlerFunc(userHandlers.RevokeToken))).Methods(http.MethodPost)

	agentHandlers := NewAgentHandlers(relaySvc, registry, fail)
	api.Handle("/agents", user(http.HandlerFunc(agentHandlers.ListAgents))).Methods(http.MethodGet)
	api.Handle("/agents", user(http.HandlerFunc(agentHandlers.CreateAgent))).Methods(http.MethodPost)
	api.Handle("/agents/{id}", user(http.HandlerFunc(agentHandlers.GetAgent))).Methods(http.MethodGet)
	api.Handle("/agents/{id}/status", user(http.HandlerFunc(agentHandlers.UpdateAgentStatus))).Methods(http.MethodPatch)
	api.Handle("/agents/{id}/revoke-token", user(http.HandlerFunc(agentHandlers.RevokeAgentToken))).Methods(http.MethodPost)
	api.Handle("/agents/{id}/events", user(http.HandlerFunc(agentHandlers.ListAgentEvents))).Methods(http.MethodGet)

	eventHandlers := NewEventHandlers(relaySvc, fail)
	api.Handle("/events", user(http.HandlerFunc(eventHandlers.ListEvents))).Methods(http.MethodGet)
	api.Handle("/events", agent(http.HandlerFunc(eventHandlers.IngestEvent))).Methods(http.MethodPost)

	inboxHandlers := NewInboxHandlers(relaySvc, fail)
	api.Handle("/inbox", user(http.HandlerFunc(inboxHandlers.ListInbox))).Methods(http.MethodGet)
	api.Handle("/inbox/{id}", user(http.HandlerFunc(inboxHandlers.GetInboxItem))).Methods(http.MethodGet)
	api.Handle("/inbox/{id}/decision", user(http.HandlerFunc(inboxHandlers.Decide))).Methods(http.MethodPost)

	spendHandlers := NewSpendHandlers(spendSvc, fail)
	api.Handle("/spend", user(http.HandlerFunc(spendHandlers.GetSpend))).Methods(http.MethodGet)
	api.Handle("/spend/budget", user(http.HandlerFunc(spendHandlers.UpdateBudget))).Methods(http.MethodPatch)

	commandHandlers := NewCommandHandlers(relaySvc, fail)
	api.Handle("/commands", agent(http.HandlerFunc(commandHandlers.ListCommands))).Methods(http.MethodGet)
	api.Handle("/commands/{id}/ack", agent(http.HandlerFunc(commandHandlers.AckCommand))).Methods(http.MethodPost)

	return middleware.CORSMiddleware(deps.Config.CORS)(router)
}
