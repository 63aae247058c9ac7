package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/logging"
)

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.FromContext(r.Context()).Error("Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"method": r.Method,
						"path":   r.URL.Path,
					})

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"error":      http.StatusText(http.StatusInternalServerError),
						"message":    "internal server error",
						"code":       "INTERNAL_ERROR",
						"request_id": GetRequestID(r.Context()),
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
