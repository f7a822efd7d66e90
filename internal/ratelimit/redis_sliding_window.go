package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Check-and-set in one round trip: returns the remaining wait in
// milliseconds, or -1 when the request was accepted and recorded.
var slidingWindowScript = redis.NewScript(`
local last = redis.call("GET", KEYS[1])
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if last then
  local elapsed = now - tonumber(last)
  if elapsed < window then
    return window - elapsed
  end
end
redis.call("SET", KEYS[1], now, "PX", window)
return -1
`)

// RedisSlidingWindowLimiter is the distributed variant of
// SlidingWindowLimiter for multi-replica deployments: tracker state lives in
// Redis so every replica sees the same last-accepted timestamps. Key expiry
// replaces the in-process sweep.
type RedisSlidingWindowLimiter struct {
	window time.Duration
	client *redis.Client
	prefix string
}

// NewRedisSlidingWindowLimiter creates a Redis-backed limiter.
func NewRedisSlidingWindowLimiter(addr, password, prefix string, window time.Duration) (*RedisSlidingWindowLimiter, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "libris:ratelimit"
	}
	return &RedisSlidingWindowLimiter{
		window: window,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}, nil
}

// Allow runs the check-and-set script for the key.
// On Redis failures, it fails closed with a full-window retry hint.
func (l *RedisSlidingWindowLimiter) Allow(key string) Decision {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	remaining, err := slidingWindowScript.Run(
		ctx,
		l.client,
		[]string{redisKey},
		time.Now().UTC().UnixMilli(),
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return Decision{RetryAfter: l.window}
	}
	if remaining < 0 {
		return Decision{Allowed: true}
	}
	return Decision{RetryAfter: time.Duration(remaining) * time.Millisecond}
}

// Reset drops all tracker keys under the limiter prefix.
func (l *RedisSlidingWindowLimiter) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	iter := l.client.Scan(ctx, 0, l.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		l.client.Del(ctx, iter.Val())
	}
}
