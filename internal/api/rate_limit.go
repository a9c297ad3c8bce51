package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/glowpix/glow/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

// withRateLimit throttles mutating session traffic per caller. Reads and
// health checks pass through untouched.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject := s.rateLimitSubject(r)
		decision, err := s.rateLimiter.Allow(r.Context(), subject)
		if err != nil {
			// Limiter outage should not take the API down with it.
			s.logger.Printf("rate limiter unavailable, allowing request: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			s.metrics.rateLimited.Inc()
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func shouldRateLimit(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/v1/sessions")
}

func (s *Server) rateLimitSubject(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader)); user != "" {
		return "user:" + user
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
