// Package middleware provides HTTP middleware for the USSD API.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/natnaelb/microloan-ussd/internal/metrics"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter is a keyed token-bucket limiter. Requests are keyed by the
// caller's phone number when present, falling back to the remote IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// caller with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		byKey: make(map[string]*limiterEntry),
	}
}

// Allow reports whether a request for key may proceed now.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byKey[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	// Periodically drop idle entries so the map cannot grow unbounded.
	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

func limiterKey(r *http.Request) string {
	if phone := r.PostFormValue("phoneNumber"); phone != "" {
		return "msisdn:" + phone
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit returns middleware enforcing the limiter. Rejected requests
// still get a well-formed END payload so the gateway shows a message
// instead of a bare error.
func RateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l != nil && !l.Allow(limiterKey(r), time.Now()) {
				metrics.RateLimited.Inc()
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("END Too many requests. Please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
