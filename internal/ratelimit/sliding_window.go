package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// DefaultWindow is the rolling window between accepted requests per key.
const DefaultWindow = 60 * time.Second

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter gates requests per tracker key.
type Limiter interface {
	Allow(key string) Decision
	// Reset clears all tracked state; intended for test isolation.
	Reset()
}

// SlidingWindowLimiter allows one request per key per rolling window,
// measured from the last accepted request. In-process only; deployments
// with multiple replicas need the Redis-backed variant or session affinity.
type SlidingWindowLimiter struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewSlidingWindowLimiter creates a limiter with the given window.
// Non-positive windows fall back to DefaultWindow.
func NewSlidingWindowLimiter(window time.Duration) *SlidingWindowLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindowLimiter{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Allow accepts the request when the key has no accepted request inside the
// window, and records the new timestamp. Otherwise it rejects with the time
// remaining until the window reopens.
func (l *SlidingWindowLimiter) Allow(key string) Decision {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)
	if last, ok := l.last[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < l.window {
			return Decision{RetryAfter: l.window - elapsed}
		}
	}
	l.last[key] = now
	return Decision{Allowed: true}
}

// Reset clears all tracked keys.
func (l *SlidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = make(map[string]time.Time)
}

// sweepLocked drops entries older than the window so the map stays bounded.
func (l *SlidingWindowLimiter) sweepLocked(now time.Time) {
	for key, ts := range l.last {
		if now.Sub(ts) >= l.window {
			delete(l.last, key)
		}
	}
}
