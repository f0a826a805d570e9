package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per agent. Mobile clients flushing an
// offline buffer can be aggressive; this caps them without rejecting a
// normally paced stream of samples.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*agentLimiter
	limit    rate.Limit
	burst    int
}

type agentLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*agentLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) get(agentID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[agentID]
	if !ok {
		entry = &agentLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[agentID] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanup drops limiters idle for over an hour
func (rl *RateLimiter) cleanup() {
	for range time.Tick(10 * time.Minute) {
		rl.mu.Lock()
		for id, entry := range rl.limiters {
			if time.Since(entry.lastSeen) > time.Hour {
				delete(rl.limiters, id)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware keys the limit on the authenticated agent, so it must run
// after Auth. Unauthenticated requests fall through untouched and fail
// in the auth layer instead.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetAgentFromContext(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.get(claims.AgentID).Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
