// Package loader coalesces single-parent field resolutions into batched calls.
//
// A Scope lives for one request and holds one Loader per parent type and
// field. Load enqueues a parent and returns a thunk; the first thunk that is
// called flushes everything enqueued so far, one batch call per distinct
// argument set. graphql-go resolves thunks breadth first, after every sibling
// field has been resolved, so a flush sees every key of the same tick.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrLengthMismatch is reported when a batch returns a different number of
// results than it was given parents
var ErrLengthMismatch = errors.New("batch result length does not match parent count")

// BatchFunc resolves many parents sharing the same arguments. It must return
// one result per parent, in order.
type BatchFunc func(ctx context.Context, parents []any, args map[string]any) ([]any, error)

// Thunk defers a loaded value. It is the function shape graphql-go dethunks.
type Thunk = func() (any, error)

// BatchError is delivered to every key of a failed flush.
type BatchError struct {
	Loader string
	Size   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s of %d failed: %v", e.Loader, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// FlushHook observes every batch call of a scope
type FlushHook func(loader string, size int)

// Scope is the per-request set of loaders.
type Scope struct {
	loaders map[string]*Loader
	hook    FlushHook
	mu      sync.Mutex
}

// ScopeOption configures a Scope
type ScopeOption func(*Scope)

// WithFlushHook observes batch calls
func WithFlushHook(hook FlushHook) ScopeOption {
	return func(s *Scope) { s.hook = hook }
}

// NewScope creates an empty scope
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{loaders: make(map[string]*Loader)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loader returns the loader registered under key, creating it with fn the
// first time
func (s *Scope) Loader(key string, fn BatchFunc) *Loader {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.loaders[key]; ok {
		return l
	}
	l := &Loader{
		key:     key,
		fn:      fn,
		hook:    s.hook,
		pending: make(map[string]*partition),
		cache:   make(map[string]*slot),
	}
	s.loaders[key] = l
	return l
}

// Len returns the number of loaders created in the scope
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loaders)
}

type slot struct {
	parent any
	ready  chan struct{}
	value  any
	err    error
}

type partition struct {
	ctx   context.Context
	args  map[string]any
	slots []*slot
}

// Loader batches one parent type and field.
type Loader struct {
	key     string
	fn      BatchFunc
	hook    FlushHook
	pending map[string]*partition
	order   []string
	cache   map[string]*slot
	mu      sync.Mutex
}

// Load enqueues parent with args. Keys that serialize identically share one
// slot, so a repeated load reuses the pending or cached result.
func (l *Loader) Load(ctx context.Context, parent any, args map[string]any) Thunk {
	argsKey := Key(args)
	key := Key(parent) + "|" + argsKey

	l.mu.Lock()
	s, ok := l.cache[key]
	if !ok {
		s = &slot{parent: parent, ready: make(chan struct{})}
		l.cache[key] = s

		p, exists := l.pending[argsKey]
		if !exists {
			p = &partition{ctx: ctx, args: args}
			l.pending[argsKey] = p
			l.order = append(l.order, argsKey)
		}
		p.slots = append(p.slots, s)
	}
	l.mu.Unlock()

	return func() (any, error) {
		l.Flush()
		<-s.ready
		return s.value, s.err
	}
}

// Flush runs every pending partition now
func (l *Loader) Flush() {
	l.mu.Lock()
	if len(l.order) == 0 {
		l.mu.Unlock()
		return
	}
	batches := make([]*partition, 0, len(l.order))
	for _, k := range l.order {
		batches = append(batches, l.pending[k])
	}
	l.pending = make(map[string]*partition)
	l.order = nil
	l.mu.Unlock()

	for _, p := range batches {
		l.run(p)
	}
}

func (l *Loader) run(p *partition) {
	parents := make([]any, len(p.slots))
	for i, s := range p.slots {
		parents[i] = s.parent
	}

	if l.hook != nil {
		l.hook(l.key, len(parents))
	}

	results, err := l.call(p.ctx, parents, p.args)
	if err == nil && len(results) != len(parents) {
		err = fmt.Errorf("%w: %s returned %d results for %d parents", ErrLengthMismatch, l.key, len(results), len(parents))
	}

	for i, s := range p.slots {
		if err != nil {
			s.err = &BatchError{Loader: l.key, Size: len(parents), Err: err}
		} else {
			s.value = results[i]
		}
		close(s.ready)
	}
}

func (l *Loader) call(ctx context.Context, parents []any, args map[string]any) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch panicked: %v", r)
		}
	}()
	return l.fn(ctx, parents, args)
}

// Key serializes a value for structural comparison. Canonical JSON is used
// when possible (map keys are sorted); other values fall back to %#v.
func Key(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

type scopeKey struct{}

// WithScope installs a scope into a context
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the scope installed in ctx, if any
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}
