package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tamil-braille/api/internal/platform/auth"
	"github.com/tamil-braille/api/internal/platform/httpx"
)

// rateLimiter admits or rejects one request for key.
type rateLimiter interface {
	Allow(key string) bool
}

// windowLimiter allows limit requests per key in each fixed window.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	clients map[string]windowCount
}

type windowCount struct {
	used  int
	reset time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		clients: make(map[string]windowCount),
	}
}

func (l *windowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.clients[key]
	if !ok || !now.Before(current.reset) {
		l.evictExpiredLocked(now)
		l.clients[key] = windowCount{used: 1, reset: now.Add(l.window)}
		return true
	}
	if current.used >= l.limit {
		return false
	}
	current.used++
	l.clients[key] = current
	return true
}

func (l *windowLimiter) evictExpiredLocked(now time.Time) {
	for key, entry := range l.clients {
		if !now.Before(entry.reset) {
			delete(l.clients, key)
		}
	}
}

// limitByClient rejects requests with 429 once the caller's window is used up.
// Callers are keyed by uid when authenticated and by remote address otherwise.
func limitByClient(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", "60")
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests, try again later", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if owner := auth.OwnerFromContext(r.Context()); owner != "" {
		return "uid:" + owner
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		host = "anonymous"
	}
	return "ip:" + host
}
