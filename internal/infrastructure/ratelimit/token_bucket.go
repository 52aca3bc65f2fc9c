package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"sparkline-service/internal/infrastructure/clock"
)

// TokenBucket implements a token bucket rate limiter.
// Tokens are tracked fractionally so slow refill rates are not lost to rounding.
type TokenBucket struct {
	mu         sync.Mutex
	clock      clock.Clock
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastUsed   time.Time
}

// NewTokenBucket creates a full bucket.
// capacity: maximum number of tokens in the bucket
// refillRate: number of tokens added per second
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return NewTokenBucketWithClock(capacity, refillRate, clock.NewReal())
}

func NewTokenBucketWithClock(capacity, refillRate int, clk clock.Clock) *TokenBucket {
	now := clk.Now()
	return &TokenBucket{
		clock:      clk,
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		lastRefill: now,
		lastUsed:   now,
	}
}

// Allow consumes one token if available
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN consumes n tokens if all of them are available
func (tb *TokenBucket) AllowN(n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = tb.clock.Now()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until n tokens are available or ctx is done.
// Requests larger than the bucket are clamped to its capacity.
func (tb *TokenBucket) Wait(ctx context.Context, n int) error {
	for {
		tb.mu.Lock()
		tb.refill()
		tb.lastUsed = tb.clock.Now()
		need := math.Min(float64(n), tb.capacity)
		if tb.tokens >= need {
			tb.tokens -= need
			tb.mu.Unlock()
			return nil
		}
		var wait time.Duration
		if tb.refillRate > 0 {
			wait = time.Duration((need - tb.tokens) / tb.refillRate * float64(time.Second))
		} else {
			wait = time.Second
		}
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tb.clock.After(wait):
		}
	}
}

// Tokens returns the whole number of tokens currently available
func (tb *TokenBucket) Tokens() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int(tb.tokens)
}

// refill must be called with the lock held
func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.refillRate)
	tb.lastRefill = now
}

func (tb *TokenBucket) idleSince(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastUsed.Before(cutoff)
}

// RateLimiterCollection manages one token bucket per client
type RateLimiterCollection struct {
	mu              sync.RWMutex
	clock           clock.Clock
	buckets         map[string]*TokenBucket
	capacity        int
	refillRate      int
	lastCleanup     time.Time
	cleanupInterval time.Duration
	idleTimeout     time.Duration
}

func NewRateLimiterCollection(capacity, refillRate int) *RateLimiterCollection {
	return NewRateLimiterCollectionWithClock(capacity, refillRate, clock.NewReal())
}

func NewRateLimiterCollectionWithClock(capacity, refillRate int, clk clock.Clock) *RateLimiterCollection {
	return &RateLimiterCollection{
		clock:           clk,
		buckets:         make(map[string]*TokenBucket),
		capacity:        capacity,
		refillRate:      refillRate,
		lastCleanup:     clk.Now(),
		cleanupInterval: 10 * time.Minute,
		idleTimeout:     30 * time.Minute,
	}
}

func (rlc *RateLimiterCollection) Allow(clientID string) bool {
	return rlc.getBucket(clientID).Allow()
}

func (rlc *RateLimiterCollection) Tokens(clientID string) int {
	return rlc.getBucket(clientID).Tokens()
}

func (rlc *RateLimiterCollection) getBucket(clientID string) *TokenBucket {
	rlc.mu.RLock()
	bucket, exists := rlc.buckets[clientID]
	rlc.mu.RUnlock()
	if exists {
		return bucket
	}

	rlc.mu.Lock()
	defer rlc.mu.Unlock()

	if bucket, exists := rlc.buckets[clientID]; exists {
		return bucket
	}

	bucket = NewTokenBucketWithClock(rlc.capacity, rlc.refillRate, rlc.clock)
	rlc.buckets[clientID] = bucket
	rlc.maybeCleanup()

	return bucket
}

// maybeCleanup drops buckets idle for longer than idleTimeout.
// Must be called with write lock held.
func (rlc *RateLimiterCollection) maybeCleanup() {
	now := rlc.clock.Now()
	if now.Sub(rlc.lastCleanup) < rlc.cleanupInterval {
		return
	}

	cutoff := now.Add(-rlc.idleTimeout)
	for clientID, bucket := range rlc.buckets {
		if bucket.idleSince(cutoff) {
			delete(rlc.buckets, clientID)
		}
	}
	rlc.lastCleanup = now
}

// Stats returns statistics about the rate limiter collection
func (rlc *RateLimiterCollection) Stats() map[string]interface{} {
	rlc.mu.RLock()
	defer rlc.mu.RUnlock()

	return map[string]interface{}{
		"total_clients": len(rlc.buckets),
		"capacity":      rlc.capacity,
		"refill_rate":   rlc.refillRate,
	}
}
