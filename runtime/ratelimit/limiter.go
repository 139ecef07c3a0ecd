// Package ratelimit provides the limiters the dispatch engine consults before
// invoking a resolver.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiting implementations
type Limiter interface {
	// Allow consumes one unit for key and reports whether the call may proceed
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info contains information about the current rate limit state
type Info struct {
	// Limit is the maximum number of calls allowed in the window
	Limit int
	// Remaining is the number of calls remaining in the current window
	Remaining int
	// ResetAt is when the window resets
	ResetAt time.Time
	// Allowed indicates whether the call should be allowed
	Allowed bool
}

// RetryAfter returns how long a denied caller should wait
func (i *Info) RetryAfter(now time.Time) time.Duration {
	if i == nil || i.Allowed {
		return 0
	}
	if d := i.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
