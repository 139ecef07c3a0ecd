package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenBucket implements an in-memory token bucket rate limiter. Buckets live
// in an expiring LRU, so idle keys are dropped after twice the refill period
// and the number of tracked keys is bounded.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    *lru.LRU[string, *bucket]
	capacity   int
	refillRate time.Duration
	now        func() time.Time
}

// bucket represents a single token bucket for a key
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig holds configuration for the token bucket rate limiter
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens in the bucket
	Capacity int
	// RefillRate is the period over which a full bucket refills
	RefillRate time.Duration
	// MaxKeys bounds the number of tracked keys
	MaxKeys int
}

// DefaultTokenBucketConfig returns a default token bucket configuration
// Allows 100 calls per minute
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:   100,
		RefillRate: time.Minute,
		MaxKeys:    10000,
	}
}

// NewTokenBucket creates a new token bucket rate limiter with default configuration
func NewTokenBucket() *TokenBucket {
	return NewTokenBucketWithConfig(DefaultTokenBucketConfig())
}

// NewTokenBucketWithConfig creates a new token bucket rate limiter with custom configuration
func NewTokenBucketWithConfig(config TokenBucketConfig) *TokenBucket {
	defaults := DefaultTokenBucketConfig()
	if config.Capacity <= 0 {
		config.Capacity = defaults.Capacity
	}
	if config.RefillRate <= 0 {
		config.RefillRate = defaults.RefillRate
	}
	if config.MaxKeys <= 0 {
		config.MaxKeys = defaults.MaxKeys
	}

	return &TokenBucket{
		buckets:    lru.NewLRU[string, *bucket](config.MaxKeys, nil, 2*config.RefillRate),
		capacity:   config.Capacity,
		refillRate: config.RefillRate,
		now:        time.Now,
	}
}

// Allow checks if a call should be allowed for the given key
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()

	b, exists := tb.buckets.Get(key)
	if !exists {
		b = &bucket{
			tokens:     tb.capacity - 1, // Consume one token immediately
			lastRefill: now,
		}
		tb.buckets.Add(key, b)

		return &Info{
			Limit:     tb.capacity,
			Remaining: b.tokens,
			ResetAt:   now.Add(tb.refillRate),
			Allowed:   true,
		}, nil
	}

	// Rate: capacity tokens per refillRate duration
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		tokensToAdd := int(float64(tb.capacity) * elapsed.Seconds() / tb.refillRate.Seconds())
		if tokensToAdd > 0 {
			b.tokens = min(tb.capacity, b.tokens+tokensToAdd)
			b.lastRefill = now
		}
	}

	if b.tokens > 0 {
		b.tokens--
		tb.buckets.Add(key, b)
		return &Info{
			Limit:     tb.capacity,
			Remaining: b.tokens,
			ResetAt:   b.lastRefill.Add(tb.refillRate),
			Allowed:   true,
		}, nil
	}

	return &Info{
		Limit:     tb.capacity,
		Remaining: 0,
		ResetAt:   b.lastRefill.Add(tb.refillRate),
		Allowed:   false,
	}, nil
}

// Reset forgets the bucket of key
func (tb *TokenBucket) Reset(key string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.buckets.Remove(key)
}

// Len returns the number of tracked keys
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.buckets.Len()
}
