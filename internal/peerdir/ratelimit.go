package peerdir

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-key token bucket used as HTTP middleware. Its
// Middleware keys buckets by the request's remote address and, once
// installed on a router, applies to every route of that router.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	capacity int
	refill   time.Duration
	cleanup  time.Duration

	lastCleanup time.Time
}

type tokenBucket struct {
	tokens   int
	lastSeen time.Time
}

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	Capacity int
	Refill   time.Duration
	Cleanup  time.Duration
}

// NewRateLimiter builds a RateLimiter, filling in sensible defaults
// for any zero-valued field.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Capacity <= 0 {
		config.Capacity = 20
	}
	if config.Refill <= 0 {
		config.Refill = 30 * time.Second
	}
	if config.Cleanup <= 0 {
		config.Cleanup = 10 * time.Minute
	}

	return &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		capacity:    config.Capacity,
		refill:      config.Refill,
		cleanup:     config.Cleanup,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a request keyed by key should proceed,
// consuming one token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > rl.cleanup {
		rl.performCleanup(now)
		rl.lastCleanup = now
	}

	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &tokenBucket{tokens: rl.capacity - 1, lastSeen: now}
		return true
	}

	elapsed := now.Sub(b.lastSeen)
	tokensToAdd := int(elapsed / rl.refill)
	b.tokens += tokensToAdd
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}
	b.lastSeen = now

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Reset clears rate-limit state for a single key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

func (rl *RateLimiter) performCleanup(now time.Time) {
	cutoff := now.Add(-1 * time.Hour)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Middleware wraps an http.Handler, rejecting requests from a caller
// (identified by remote address) once its token bucket is empty,
// with 429 Too Many Requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
