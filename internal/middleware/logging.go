package middleware

import (
	"net/http"
	"time"

	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/jarvis/MissionControl/api/internal/metrics"
)

// LoggingMiddleware logs each request and records it in the HTTP metrics.
// Bodies are never logged; they carry tokens and operator comments.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := newResponseRecorder(w)

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)
			route := routeTemplate(r)
			metrics.RecordHTTPRequest(r.Method, route, recorder.statusCode, duration.Seconds())

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status_code": recorder.statusCode,
				"duration_ms": duration.Milliseconds(),
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			}
			log := logger.FromContext(r.Context())
			switch {
			case recorder.statusCode >= 500:
				log.Warn("HTTP request failed", fields)
			default:
				log.Info("HTTP request", fields)
			}
		})
	}
}
