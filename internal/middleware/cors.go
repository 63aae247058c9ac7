package middleware

import (
	"net/http"
	"strings"

	"github.com/jarvis/MissionControl/api/internal/config"
)

// CORSMiddleware answers preflight requests and sets CORS headers for allowed origins
func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed, allowAll := originAllowed(cfg.AllowedOrigins, origin)

			if allowed {
				switch {
				case origin != "":
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					// Credentials only ever go with a concrete origin
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				case allowAll:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowedOrigins []string, origin string) (allowed, allowAll bool) {
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" {
			return true, true
		}
		if origin != "" && strings.EqualFold(allowedOrigin, origin) {
			return true, false
		}
	}
	return false, false
}
