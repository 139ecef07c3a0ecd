package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// ErrNoActionResolver is returned when an action has no registered resolver
var ErrNoActionResolver = errors.New("no resolver registered for action")

// ActionHandler dispatches one REST-style action. Args are keyed by slot:
// "params", "query", "headers", "cookies" and "body".
type ActionHandler struct {
	Action *metadata.Action
	meta   *metadata.TypeMetadata
	engine *dispatch.Engine
	fn     resolver.ResolveFunc
}

// Resolved reports whether a resolver is registered for the action
func (h *ActionHandler) Resolved() bool {
	return h.fn != nil
}

// Invoke runs the action resolver through the dispatch engine
func (h *ActionHandler) Invoke(ctx context.Context, req resolver.RequestInfo, args resolver.Args) (any, error) {
	if h.fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActionResolver, h.Action.Name)
	}
	inv := &dispatch.Invocation{
		Group:      metadata.GroupActions,
		ParentType: "Action",
		Field:      h.Action.Name,
		Meta:       h.meta,
		Args:       args,
		Request:    req,
	}
	return h.engine.Invoke(ctx, inv, func(rctx *resolver.Context) (any, error) {
		return h.fn(rctx, args)
	})
}

// Actions returns one handler per declared action, in declaration order.
func (b *Builder) Actions() []*ActionHandler {
	handlers := make([]*ActionHandler, 0, len(b.app.Actions))
	for _, a := range b.app.Actions {
		handlers = append(handlers, &ActionHandler{
			Action: a,
			meta:   actionMeta(a),
			engine: b.engine,
			fn:     b.lookupResolve(metadata.GroupActions, a.Name),
		})
	}
	return handlers
}

// actionMeta describes an action as one field whose single object argument
// holds the input slots.
func actionMeta(a *metadata.Action) *metadata.TypeMetadata {
	md := a.Return.Clone()
	if md == nil {
		md = &metadata.TypeMetadata{Kind: metadata.KindObject}
	}
	slots := &metadata.TypeMetadata{Kind: metadata.KindObject, PropertyName: "args"}
	for _, name := range metadata.ActionSlots[1:] {
		if slot := a.Slot(name); slot != nil {
			s := slot.Clone()
			s.PropertyName = name
			slots.Properties = append(slots.Properties, s)
		}
	}
	md.Args = []*metadata.TypeMetadata{slots}
	return md
}
