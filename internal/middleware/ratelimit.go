package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's address, preferring X-Forwarded-For from a
// reverse proxy and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PINAttemptKey buckets PIN guesses per target member and client address.
func PINAttemptKey(r *http.Request) string {
	return "pin:" + r.PathValue("id") + "@" + RealIP(r)
}

type attempts struct {
	count   int
	resetAt time.Time
}

// AttemptLimiter counts attempts per key in fixed windows.
type AttemptLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*attempts
}

// NewAttemptLimiter allows limit attempts per key in each window.
func NewAttemptLimiter(limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		keys:   make(map[string]*attempts),
	}
}

// Allow records an attempt for key. When the key is over its limit it
// reports false and how long until the window resets.
func (l *AttemptLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a, ok := l.keys[key]
	if !ok || !now.Before(a.resetAt) {
		l.keys[key] = &attempts{count: 1, resetAt: now.Add(l.window)}
		return l.limit > 0, 0
	}
	a.count++
	if a.count <= l.limit {
		return true, 0
	}
	return false, a.resetAt.Sub(now)
}

// Prune forgets keys whose window has passed.
func (l *AttemptLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, a := range l.keys {
		if !now.Before(a.resetAt) {
			delete(l.keys, key)
			n++
		}
	}
	return n
}

// Limit rejects requests over the limiter's budget with 429 and a
// Retry-After in whole seconds.
func Limit(l *AttemptLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Allow(keyFunc(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
