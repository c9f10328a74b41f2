package server

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter admits new connections per client IP with a token bucket.
// Rejected connections are closed without a response.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rpm       int // connections per minute
	burstSize int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter refilling rpm tokens per minute with a
// burst of burstSize.
func NewRateLimiter(rpm, burstSize int) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		rpm:       rpm,
		burstSize: burstSize,
	}
}

// Allow reports whether a connection from key may proceed and consumes a
// token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(rl.rpm)/60.0), rl.burstSize)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// AllowAddr is Allow keyed by the host part of addr.
func (rl *RateLimiter) AllowAddr(addr net.Addr) bool {
	return rl.Allow(clientKey(addr))
}

// Cleanup removes buckets not used within maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns the number of tracked clients.
func (rl *RateLimiter) Stats() (buckets int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientKey extracts the IP from addr, falling back to its full string.
func clientKey(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
