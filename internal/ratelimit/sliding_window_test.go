package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowLimiter(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	limiter := NewSlidingWindowLimiter(60 * time.Second)
	limiter.now = func() time.Time { return clock }

	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("first request should pass")
	}

	clock = base.Add(10 * time.Second)
	d := limiter.Allow("user-1")
	if d.Allowed {
		t.Fatalf("second request inside window should be blocked")
	}
	if got := d.RetryAfterSeconds(); got != 50 {
		t.Fatalf("expected retry after 50s, got %d", got)
	}

	// A different key is unaffected.
	if d := limiter.Allow("user-2"); !d.Allowed {
		t.Fatalf("other key should pass")
	}

	clock = base.Add(60 * time.Second)
	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("request after full window should pass")
	}
}

func TestSlidingWindowLimiterRetryAfterBounds(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	limiter := NewSlidingWindowLimiter(60 * time.Second)
	limiter.now = func() time.Time { return clock }

	limiter.Allow("user-1")
	clock = base.Add(59*time.Second + 900*time.Millisecond)
	d := limiter.Allow("user-1")
	if d.Allowed {
		t.Fatalf("request 59.9s into window should be blocked")
	}
	if got := d.RetryAfterSeconds(); got < 1 || got > 60 {
		t.Fatalf("retry-after must stay in [1,60], got %d", got)
	}
}

func TestSlidingWindowLimiterSweep(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	limiter := NewSlidingWindowLimiter(60 * time.Second)
	limiter.now = func() time.Time { return clock }

	for _, key := range []string{"a", "b", "c"} {
		limiter.Allow(key)
	}
	clock = base.Add(2 * time.Minute)
	limiter.Allow("d")
	limiter.mu.Lock()
	tracked := len(limiter.last)
	limiter.mu.Unlock()
	if tracked != 1 {
		t.Fatalf("stale entries should be swept, still tracking %d keys", tracked)
	}
}

func TestSlidingWindowLimiterReset(t *testing.T) {
	limiter := NewSlidingWindowLimiter(60 * time.Second)
	limiter.Allow("user-1")
	if d := limiter.Allow("user-1"); d.Allowed {
		t.Fatalf("repeat should be blocked before reset")
	}
	limiter.Reset()
	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("reset should clear tracked state")
	}
}

func TestSlidingWindowLimiterEmptyKey(t *testing.T) {
	limiter := NewSlidingWindowLimiter(60 * time.Second)
	if d := limiter.Allow(""); !d.Allowed {
		t.Fatalf("first request on empty key should pass")
	}
	if d := limiter.Allow("  "); d.Allowed {
		t.Fatalf("blank keys share one bucket and should be blocked")
	}
}
