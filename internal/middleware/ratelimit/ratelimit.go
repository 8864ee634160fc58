// Package ratelimit guards the capture trigger against rapid repeated
// requests. The control plane is local, so the limiter tracks a small
// number of callers keyed by remote host.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Limiter allows at most perMinute requests per caller in any rolling
// minute. Zero or negative perMinute disables limiting.
type Limiter struct {
	mu        sync.Mutex
	callers   map[string]*window
	perMinute int
	now       func() time.Time
}

func New(perMinute int) *Limiter {
	return &Limiter{
		callers:   make(map[string]*window),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow reports whether one more request from key fits the budget.
func (l *Limiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.callers[key]
	if !ok || now.Sub(w.start) > time.Minute {
		l.callers[key] = &window{start: now, count: 1}
		l.sweep(now)
		return true
	}

	w.count++
	return w.count <= l.perMinute
}

// sweep drops callers whose window expired. Called under mu; the
// caller map stays bounded by the handful of local clients.
func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.callers {
		if now.Sub(w.start) > 2*time.Minute {
			delete(l.callers, key)
		}
	}
}

// Wrap rejects over-budget requests with 429 before they reach next.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.Allow(host) {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many capture requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
