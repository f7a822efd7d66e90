package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSlidingWindowLimiter(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisSlidingWindowLimiter(srv.Addr(), "", "test:ratelimit", time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("first request should pass")
	}
	d := limiter.Allow("user-1")
	if d.Allowed {
		t.Fatalf("second request inside window should be blocked")
	}
	if got := d.RetryAfterSeconds(); got < 1 || got > 60 {
		t.Fatalf("retry-after must stay in [1,60], got %d", got)
	}
	if d := limiter.Allow("user-2"); !d.Allowed {
		t.Fatalf("other key should pass")
	}
}

func TestRedisSlidingWindowLimiterReopens(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisSlidingWindowLimiter(srv.Addr(), "", "test:ratelimit", time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	limiter.Allow("user-1")
	// Key expiry stands in for the sweep; jump past the window.
	srv.FastForward(61 * time.Second)
	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("request after window should pass, retry after %s", d.RetryAfter)
	}
}

func TestRedisSlidingWindowLimiterFailsClosed(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisSlidingWindowLimiter(srv.Addr(), "", "test:ratelimit", time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	srv.Close()
	d := limiter.Allow("user-1")
	if d.Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
	if got := d.RetryAfterSeconds(); got != 60 {
		t.Fatalf("fail-closed retry hint should be the full window, got %d", got)
	}
}

func TestRedisSlidingWindowLimiterRequiresAddr(t *testing.T) {
	if limiter, err := NewRedisSlidingWindowLimiter("", "", "test:ratelimit", time.Minute); err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestRedisSlidingWindowLimiterReset(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisSlidingWindowLimiter(srv.Addr(), "", "test:ratelimit", time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	limiter.Allow("user-1")
	limiter.Reset()
	if d := limiter.Allow("user-1"); !d.Allowed {
		t.Fatalf("reset should clear tracked state")
	}
}
