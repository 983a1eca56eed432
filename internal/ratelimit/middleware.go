package ratelimit

import (
	"encoding/json"
	"net/http"

	"github.com/hireloop/moderation/internal/metrics"
)

// KeyFunc extracts the rate limit identifier from a request. An empty
// identifier skips limiting.
type KeyFunc func(r *http.Request) string

// Middleware throttles POST, PUT and PATCH requests per identifier and
// answers 429 with a Retry-After header once the rule's limit is reached.
func (l *Limiter) Middleware(rule Rule, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			id := key(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, _ := l.Allow(r.Context(), id, rule)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", retryAfterSeconds(l.RetryAfter(r.Context(), id, rule)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "Too many requests",
				"code":    "RATE_LIMITED",
			})
		})
	}
}
