package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// ErrLimited is wrapped by ExceededError
var ErrLimited = errors.New("rate limit exceeded")

// ExceededError is returned by Guard.Check when the quota is used up.
type ExceededError struct {
	Key  string
	Info *Info
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Key)
}

func (e *ExceededError) Unwrap() error {
	return ErrLimited
}

// Guard consumes quota keyed by caller identity and field coordinate.
type Guard struct {
	Limiter Limiter
	// Identity extracts the caller identity; defaults to RemoteIdentity
	Identity func(resolver.RequestInfo) string
	// Match selects the coordinates ("Query.posts") to limit; nil limits all
	Match func(coordinate string) bool
	// FailOpen lets calls through when the limiter itself fails
	FailOpen bool
}

// NewGuard creates a guard over limiter with the default identity
func NewGuard(limiter Limiter) *Guard {
	return &Guard{Limiter: limiter}
}

// Key builds the limiter key for a caller and coordinate
func (g *Guard) Key(req resolver.RequestInfo, coordinate string) string {
	identity := RemoteIdentity
	if g.Identity != nil {
		identity = g.Identity
	}
	return identity(req) + "|" + coordinate
}

// Check consumes one unit for the caller. It returns an *ExceededError when
// the call must not proceed.
func (g *Guard) Check(ctx context.Context, req resolver.RequestInfo, coordinate string) (*Info, error) {
	if g == nil || g.Limiter == nil {
		return nil, nil
	}
	if g.Match != nil && !g.Match(coordinate) {
		return nil, nil
	}

	key := g.Key(req, coordinate)
	info, err := g.Limiter.Allow(ctx, key)
	if err != nil {
		if g.FailOpen {
			return nil, nil
		}
		return nil, fmt.Errorf("rate limiter failed for %s: %w", key, err)
	}
	if !info.Allowed {
		return info, &ExceededError{Key: key, Info: info}
	}
	return info, nil
}

// RemoteIdentity identifies a caller by remote host, without the port
func RemoteIdentity(req resolver.RequestInfo) string {
	addr := req.RemoteAddr
	if addr == "" && req.HTTP != nil {
		addr = req.HTTP.RemoteAddr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if addr == "" {
		return "anonymous"
	}
	return addr
}

// HeaderIdentity identifies a caller by a request header, falling back to the
// remote host
func HeaderIdentity(header string) func(resolver.RequestInfo) string {
	return func(req resolver.RequestInfo) string {
		if req.Headers != nil {
			if v := req.Headers.Get(header); v != "" {
				return v
			}
		}
		return RemoteIdentity(req)
	}
}
