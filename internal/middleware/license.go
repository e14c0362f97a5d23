// Package middleware provides HTTP middleware for the licensing subsystem:
// a tier gate that rejects requests below a minimum subscription tier and a
// per-client rate limiter for license check endpoints.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"esmcsdk/internal/license"
	transport "esmcsdk/internal/transport/http"
)

// LicenseGate rejects requests whose current license tier is below minTier.
// The check reads the license file on every request; the manager already
// normalizes missing and expired licenses to FREE.
func LicenseGate(manager *license.Manager, minTier license.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			validation := manager.Validate()
			if !validation.Tier.AtLeast(minTier) {
				slog.Warn("request blocked below required tier",
					slog.String("path", r.URL.Path),
					slog.String("required", string(minTier)),
					slog.String("current", string(validation.Tier)),
				)
				render.Render(w, r, transport.NewTierProblem(
					string(minTier), string(validation.Tier), r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits each client to perMinute requests per minute, keyed by
// remote IP. Exceeding the limit renders a 429 problem response.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	limiters := &clientLimiters{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		clients: make(map[string]*rate.Limiter),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientKey(r)) {
				render.Render(w, r, transport.NewRateLimitProblem(r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	lim, ok := c.clients[key]
	if !ok {
		lim = rate.NewLimiter(c.limit, c.burst)
		c.clients[key] = lim
	}
	c.mu.Unlock()
	return lim.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
