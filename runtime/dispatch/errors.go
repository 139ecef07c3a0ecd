package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// Kind classifies a field failure.
type Kind int

const (
	KindValidation Kind = iota
	KindResolver
	KindRateLimit
	KindBatch
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolver:
		return "resolver"
	case KindRateLimit:
		return "rate_limit"
	case KindBatch:
		return "batch"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// FieldError wraps every failure of an invocation.
type FieldError struct {
	Kind       Kind
	State      State
	Group      metadata.Group
	ParentType string
	Field      string
	Args       resolver.Args
	RequestID  string
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.ParentType, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ErrorHandler turns a FieldError into the error reported for the field.
type ErrorHandler func(ctx context.Context, err *FieldError) error

// DefaultErrorHandler reports the FieldError unchanged
func DefaultErrorHandler(_ context.Context, err *FieldError) error {
	return err
}

// ValidationError is returned when a value fails a registered rule.
type ValidationError struct {
	Path     []string
	TypeName string
	Err      error
}

func (e *ValidationError) Error() string {
	path := strings.Join(e.Path, ".")
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("validation failed at %s (%s): %v", path, e.TypeName, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the caller exhausted its quota for a field.
type RateLimitError struct {
	Coordinate string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Coordinate, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Coordinate)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
