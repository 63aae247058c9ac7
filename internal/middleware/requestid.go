package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/logging"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-Id"

/* RequestIDMiddleware adds a request ID to each request */
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

/* GetRequestID gets request ID from context */
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}
