package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jarvis/MissionControl/api/internal/auth"
)

// RateLimiter provides sliding-window rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new rate limiter; call Stop to end its cleanup loop
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow records a request for key and reports whether it is within the limit,
// along with the requests still available in the current window.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	filtered := rl.recent(key, now)
	if len(filtered) >= rl.limit {
		rl.requests[key] = filtered
		return false, 0
	}

	filtered = append(filtered, now)
	rl.requests[key] = filtered
	return true, rl.limit - len(filtered)
}

// Remaining returns the number of remaining requests
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.limit - len(rl.recent(key, rl.now()))
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

// Stop ends the background cleanup
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	history := rl.requests[key]
	filtered := make([]time.Time, 0, len(history)+1)
	for _, t := range history {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// cleanup removes idle keys periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		cutoff := rl.now().Add(-rl.window * 2)
		for key, history := range rl.requests {
			if len(history) == 0 || !history[len(history)-1].After(cutoff) {
				delete(rl.requests, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware limits requests per credential, falling back to the client address
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			allowed, remaining := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      http.StatusText(http.StatusTooManyRequests),
					"message":    "rate limit exceeded",
					"code":       "RATE_LIMITED",
					"request_id": GetRequestID(r.Context()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey hashes the presented credential so raw tokens never sit in memory as map keys
func rateLimitKey(r *http.Request) string {
	if token := r.Header.Get(auth.AgentTokenHeader); token != "" {
		return "agent:" + auth.HashToken(token)
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return "user:" + auth.HashToken(strings.TrimSpace(header))
	}
	if token := r.Header.Get(auth.ControlPlaneTokenHeader); token != "" {
		return "control:" + auth.HashToken(token)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
