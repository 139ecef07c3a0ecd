package dispatch

import (
	"time"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// State is a step of the per-invocation state machine.
type State int

const (
	StateStart State = iota
	StateValidateArgs
	StateBuildContext
	StateInvoke
	StateValidateResult
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateValidateArgs:
		return "validate_args"
	case StateBuildContext:
		return "build_context"
	case StateInvoke:
		return "invoke"
	case StateValidateResult:
		return "validate_result"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Invocation describes one field resolution.
type Invocation struct {
	Group      metadata.Group
	ParentType string // "Query", "Mutation", "Subscription" or a model name
	Field      string
	Meta       *metadata.TypeMetadata
	Args       resolver.Args
	Parent     any
	Request    resolver.RequestInfo
}

// Coordinate returns "ParentType.Field"
func (inv *Invocation) Coordinate() string {
	return inv.ParentType + "." + inv.Field
}

// Observer is notified of every state transition.
type Observer interface {
	Transition(inv *Invocation, state State)
	Finish(inv *Invocation, state State, elapsed time.Duration)
}

// FlushObserver is implemented by observers that also count batch flushes.
type FlushObserver interface {
	Flushed(loader string, size int)
}

type nopObserver struct{}

func (nopObserver) Transition(*Invocation, State)            {}
func (nopObserver) Finish(*Invocation, State, time.Duration) {}
