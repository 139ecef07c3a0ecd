// Package dispatch runs resolver invocations through argument validation,
// context construction, rate limiting, the resolver itself and result
// validation, and reports every failure in one shape.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/typegraph/runtime/loader"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/ratelimit"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// Call is the resolver body run by Invoke.
type Call func(ctx *resolver.Context) (any, error)

// SubscribeCall is the subscription body run by Subscribe.
type SubscribeCall func(ctx *resolver.Context) (*resolver.Subscription, error)

// Engine dispatches resolver invocations.
type Engine struct {
	registry *resolver.Registry
	logger   *zap.Logger
	rules    *Rules
	app      *metadata.Application
	guard    *ratelimit.Guard
	onError  ErrorHandler
	observer Observer
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithValidator sets the rules applied to arguments and results
func WithValidator(rules *Rules) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithApplication lets validation follow reference nodes into the models
// and inputs of app
func WithApplication(app *metadata.Application) Option {
	return func(e *Engine) { e.app = app }
}

// WithRateLimit guards every invocation with g
func WithRateLimit(g *ratelimit.Guard) Option {
	return func(e *Engine) { e.guard = g }
}

// WithErrorHandler sets the handler that shapes field errors
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Engine) {
		if h != nil {
			e.onError = h
		}
	}
}

// WithObserver sets the state transition observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an engine over registry
func New(registry *resolver.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		logger:   zap.NewNop(),
		onError:  DefaultErrorHandler,
		observer: nopObserver{},
		now:      time.Now,
	}
	if e.registry == nil {
		e.registry = resolver.New()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules != nil && e.app != nil {
		e.rules.Resolve(e.app)
	}
	return e
}

// Registry returns the registry the engine reads context resolvers from
func (e *Engine) Registry() *resolver.Registry {
	return e.registry
}

// WithScope installs a fresh batch loader scope into ctx. Transports call it
// once per request.
func (e *Engine) WithScope(ctx context.Context) context.Context {
	var opts []loader.ScopeOption
	if fo, ok := e.observer.(FlushObserver); ok {
		opts = append(opts, loader.WithFlushHook(fo.Flushed))
	}
	return loader.WithScope(ctx, loader.NewScope(opts...))
}

// BuildContext creates the resolver context for one invocation. Context
// resolvers run concurrently; a failing one fails the whole context.
func (e *Engine) BuildContext(ctx context.Context, req resolver.RequestInfo) (*resolver.Context, error) {
	logger := e.logger
	if req.ID != "" {
		logger = logger.With(zap.String("request_id", req.ID))
	}

	values := make(map[string]any)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, cr := range e.registry.Contexts() {
		if cr.Func == nil {
			values[cr.Name] = cr.Value
			continue
		}
		cr := cr
		g.Go(func() error {
			v, err := cr.Func(gctx, req)
			if err != nil {
				return fmt.Errorf("context resolver %s: %w", cr.Name, err)
			}
			mu.Lock()
			values[cr.Name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &resolver.Context{
		Context: ctx,
		Request: req,
		Logger:  logger,
		Values:  values,
	}, nil
}

// prepare runs the steps shared by every entry point and returns the context
// the resolver will see.
func (e *Engine) prepare(ctx context.Context, inv *Invocation) (*resolver.Context, error) {
	e.observer.Transition(inv, StateStart)

	e.observer.Transition(inv, StateValidateArgs)
	if inv.Meta != nil {
		if err := e.rules.ValidateArgs(ctx, inv.Meta.Args, inv.Args); err != nil {
			return nil, e.fail(ctx, inv, StateValidateArgs, KindValidation, err)
		}
	}

	e.observer.Transition(inv, StateBuildContext)
	rctx, err := e.BuildContext(ctx, inv.Request)
	if err != nil {
		return nil, e.fail(ctx, inv, StateBuildContext, KindContext, err)
	}

	e.observer.Transition(inv, StateInvoke)
	if info, err := e.guard.Check(ctx, inv.Request, inv.Coordinate()); err != nil {
		kind := KindResolver
		if errors.Is(err, ratelimit.ErrLimited) {
			kind = KindRateLimit
			err = &RateLimitError{Coordinate: inv.Coordinate(), RetryAfter: info.RetryAfter(e.now()), Err: err}
		}
		return nil, e.fail(ctx, inv, StateInvoke, kind, err)
	}
	return rctx, nil
}

// Invoke resolves inv directly with call.
func (e *Engine) Invoke(ctx context.Context, inv *Invocation, call Call) (any, error) {
	start := e.now()
	rctx, err := e.prepare(ctx, inv)
	if err != nil {
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}

	result, err := safeCall(rctx, call)
	if err != nil {
		err = e.fail(ctx, inv, StateInvoke, KindResolver, err)
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}
	return e.complete(ctx, inv, result, start)
}

// InvokeBatched enqueues inv into the request's loader for its coordinate and
// returns a thunk. Without a scope in ctx the batch holds only this parent.
func (e *Engine) InvokeBatched(ctx context.Context, inv *Invocation, batch resolver.BatchFunc) (loader.Thunk, error) {
	start := e.now()
	rctx, err := e.prepare(ctx, inv)
	if err != nil {
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}

	scope, ok := loader.FromContext(ctx)
	if !ok {
		scope = loader.NewScope()
	}
	ld := scope.Loader(inv.Coordinate(), func(bctx context.Context, parents []any, args map[string]any) ([]any, error) {
		rc, ok := bctx.(*resolver.Context)
		if !ok {
			rc = &resolver.Context{Context: bctx, Logger: e.logger}
		}
		return batch(rc, parents, resolver.Args(args))
	})
	pending := ld.Load(rctx, inv.Parent, map[string]any(inv.Args))

	return func() (any, error) {
		result, err := pending()
		if err != nil {
			err = e.fail(ctx, inv, StateInvoke, KindBatch, err)
			e.observer.Finish(inv, StateFailure, e.now().Sub(start))
			return nil, err
		}
		return e.complete(ctx, inv, result, start)
	}, nil
}

// Subscribe opens a subscription for inv.
func (e *Engine) Subscribe(ctx context.Context, inv *Invocation, call SubscribeCall) (*resolver.Subscription, error) {
	start := e.now()
	rctx, err := e.prepare(ctx, inv)
	if err != nil {
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}

	sub, err := call(rctx)
	if err == nil && sub == nil {
		err = errors.New("subscribe returned no subscription")
	}
	if err != nil {
		err = e.fail(ctx, inv, StateInvoke, KindResolver, err)
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}

	e.observer.Transition(inv, StateSuccess)
	e.observer.Finish(inv, StateSuccess, e.now().Sub(start))
	return sub, nil
}

func (e *Engine) complete(ctx context.Context, inv *Invocation, result any, start time.Time) (any, error) {
	e.observer.Transition(inv, StateValidateResult)
	if err := e.rules.Validate(ctx, inv.Meta, result); err != nil {
		err = e.fail(ctx, inv, StateValidateResult, KindValidation, err)
		e.observer.Finish(inv, StateFailure, e.now().Sub(start))
		return nil, err
	}
	e.observer.Transition(inv, StateSuccess)
	e.observer.Finish(inv, StateSuccess, e.now().Sub(start))
	return result, nil
}

func (e *Engine) fail(ctx context.Context, inv *Invocation, state State, kind Kind, err error) error {
	fe := &FieldError{
		Kind:       kind,
		State:      state,
		Group:      inv.Group,
		ParentType: inv.ParentType,
		Field:      inv.Field,
		Args:       inv.Args,
		RequestID:  inv.Request.ID,
		Err:        err,
	}
	e.observer.Transition(inv, StateFailure)

	e.logger.Warn("field resolution failed",
		zap.String("group", string(inv.Group)),
		zap.String("parent_type", inv.ParentType),
		zap.String("field", inv.Field),
		zap.Any("args", map[string]any(inv.Args)),
		zap.String("request_id", inv.Request.ID),
		zap.String("state", state.String()),
		zap.String("kind", kind.String()),
		zap.Error(err))

	return e.onError(ctx, fe)
}

func safeCall(ctx *resolver.Context, call Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panicked: %v", r)
		}
	}()
	return call(ctx)
}
