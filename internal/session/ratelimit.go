package session

import (
	"net"
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

// Token-bucket parameters: 100 events per 10 second window, then a 5
// second cooldown before the bucket refills. Loopback traffic bypasses
// the limiter entirely (the admin UI runs hot during playlist edits).
const (
	rateLimitEvents   = 100
	rateLimitWindow   = 10 * time.Second
	rateLimitCooldown = 5 * time.Second
)

type bucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time
}

// RateLimiter throttles inbound events per remote address.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clk     clock.Clock
}

func NewRateLimiter(clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		clk:     clk,
	}
}

// Allow consumes one event for the address. When the bucket is exhausted
// it returns false and how long the caller should tell the client to wait.
func (rl *RateLimiter) Allow(remoteAddr string) (bool, time.Duration) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clk.Now()

	b, ok := rl.buckets[host]
	if !ok {
		b = &bucket{windowStart: now}
		rl.buckets[host] = b
	}

	if now.Before(b.cooldownUntil) {
		return false, b.cooldownUntil.Sub(now)
	}
	if now.Sub(b.windowStart) >= rateLimitWindow {
		b.windowStart = now
		b.count = 0
	}
	b.count++
	if b.count > rateLimitEvents {
		b.cooldownUntil = now.Add(rateLimitCooldown)
		return false, rateLimitCooldown
	}
	return true, 0
}
