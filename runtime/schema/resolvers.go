package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// ErrNoBroker is returned when a trigger subscription starts without a broker
var ErrNoBroker = errors.New("no pub/sub broker attached")

func contextOf(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}

func invocation(g metadata.Group, parentType, field string, md *metadata.TypeMetadata, p graphql.ResolveParams) *dispatch.Invocation {
	ctx := contextOf(p)
	return &dispatch.Invocation{
		Group:      g,
		ParentType: parentType,
		Field:      field,
		Meta:       md,
		Args:       resolver.Args(p.Args),
		Parent:     p.Source,
		Request:    resolver.RequestFrom(ctx),
	}
}

func passthrough(p graphql.ResolveParams) (interface{}, error) {
	return p.Source, nil
}

func (b *Builder) rootField(g metadata.Group, parentType, name string, md *metadata.TypeMetadata) *graphql.Field {
	field := &graphql.Field{
		Type:              b.output(md),
		Args:              b.args(md),
		Description:       md.Description,
		DeprecationReason: md.Deprecated,
	}
	coordinate := parentType + "." + name

	if g == metadata.GroupSubscriptions {
		field.Subscribe = b.subscriber(parentType, name, md)
		field.Resolve = passthrough
		b.subscribers[coordinate] = field.Subscribe
	} else {
		field.Resolve = b.rootResolver(g, parentType, name, md)
	}
	b.resolvers[coordinate] = field.Resolve
	return field
}

// lookupResolve finds the resolve function of a root: the item resolver
// first, then a bag.
func (b *Builder) lookupResolve(g metadata.Group, name string) resolver.ResolveFunc {
	if item := b.registry.FindItem(g, name); item != nil {
		if item.Resolve != nil {
			return item.Resolve
		}
		if item.Value != nil {
			value := item.Value
			return func(*resolver.Context, resolver.Args) (any, error) { return value, nil }
		}
	}
	if resolve, _, ok := b.registry.FindBag(g, name); ok && resolve != nil {
		return resolve
	}
	return nil
}

func (b *Builder) rootResolver(g metadata.Group, parentType, name string, md *metadata.TypeMetadata) graphql.FieldResolveFn {
	resolve := b.lookupResolve(g, name)
	if resolve == nil {
		return func(graphql.ResolveParams) (interface{}, error) { return nil, nil }
	}
	return func(p graphql.ResolveParams) (interface{}, error) {
		inv := invocation(g, parentType, name, md, p)
		return b.engine.Invoke(contextOf(p), inv, func(ctx *resolver.Context) (any, error) {
			return resolve(ctx, inv.Args)
		})
	}
}

// fieldResolver attaches, in priority order, a model field resolver, a model
// batch resolver, a persistence relation, or the default property read.
func (b *Builder) fieldResolver(typeName string, p *metadata.TypeMetadata) graphql.FieldResolveFn {
	name := p.PropertyName
	coordinate := typeName + "." + name

	var fn graphql.FieldResolveFn
	switch {
	case b.registry.FindModelField(typeName, name) != nil:
		field := b.registry.FindModelField(typeName, name)
		fn = func(rp graphql.ResolveParams) (interface{}, error) {
			inv := invocation(metadata.GroupModels, typeName, name, p, rp)
			return b.engine.Invoke(contextOf(rp), inv, func(ctx *resolver.Context) (any, error) {
				return field(ctx, inv.Parent, inv.Args)
			})
		}
	case b.registry.FindModelBatch(typeName, name) != nil:
		fn = b.batched(typeName, name, p, b.registry.FindModelBatch(typeName, name))
	case b.relation(typeName, name):
		fn = b.batched(typeName, name, p, func(ctx *resolver.Context, parents []any, _ resolver.Args) ([]any, error) {
			return b.persistence.LoadRelation(ctx, typeName, name, parents)
		})
	default:
		return func(rp graphql.ResolveParams) (interface{}, error) {
			v, _ := resolver.Property(rp.Source, name)
			return v, nil
		}
	}

	b.resolvers[coordinate] = fn
	return fn
}

func (b *Builder) batched(typeName, name string, p *metadata.TypeMetadata, batch resolver.BatchFunc) graphql.FieldResolveFn {
	return func(rp graphql.ResolveParams) (interface{}, error) {
		inv := invocation(metadata.GroupModels, typeName, name, p, rp)
		thunk, err := b.engine.InvokeBatched(contextOf(rp), inv, batch)
		if err != nil {
			return nil, err
		}
		return thunk, nil
	}
}

func (b *Builder) relation(typeName, name string) bool {
	if b.persistence == nil || !b.persistence.HasMetadata(typeName) {
		return false
	}
	meta, err := b.persistence.Metadata(typeName)
	if err != nil {
		b.logger.Debug("no persistence metadata", zap.String("model", typeName), zap.Error(err))
		return false
	}
	return meta.Relation(name) != nil
}

// lookupSubscribe finds the subscribe function of a subscription root: the
// item resolver, then a bag, then a trigger descriptor.
func (b *Builder) lookupSubscribe(name string) resolver.SubscribeFunc {
	g := metadata.GroupSubscriptions
	if item := b.registry.FindItem(g, name); item != nil {
		if item.Subscribe != nil {
			return item.Subscribe
		}
		if t, ok := item.Value.(*resolver.Trigger); ok {
			return b.trigger(t)
		}
	}
	if _, subscribe, ok := b.registry.FindBag(g, name); ok && subscribe != nil {
		return subscribe
	}
	return nil
}

func (b *Builder) subscriber(parentType, name string, md *metadata.TypeMetadata) graphql.FieldResolveFn {
	subscribe := b.lookupSubscribe(name)
	return func(p graphql.ResolveParams) (interface{}, error) {
		if subscribe == nil {
			return nil, fmt.Errorf("no subscribe resolver for %s.%s", parentType, name)
		}
		ctx := contextOf(p)
		inv := invocation(metadata.GroupSubscriptions, parentType, name, md, p)
		sub, err := b.engine.Subscribe(ctx, inv, func(rctx *resolver.Context) (*resolver.Subscription, error) {
			return subscribe(rctx, inv.Args)
		})
		if err != nil {
			return nil, err
		}

		out := make(chan interface{})
		go func() {
			defer close(out)
			if sub.Cleanup != nil {
				defer sub.Cleanup()
			}
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-sub.C:
					if !ok {
						return
					}
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out, nil
	}
}

// trigger adapts a trigger descriptor to a subscribe function over the
// attached broker.
func (b *Builder) trigger(t *resolver.Trigger) resolver.SubscribeFunc {
	return func(ctx *resolver.Context, args resolver.Args) (*resolver.Subscription, error) {
		if b.broker == nil {
			return nil, ErrNoBroker
		}
		if t.Accept != nil {
			if err := t.Accept(args); err != nil {
				return nil, err
			}
		}
		src, err := b.broker.Subscribe(ctx, t.Topics...)
		if err != nil {
			return nil, err
		}
		if t.OnSubscribe != nil {
			t.OnSubscribe(ctx, args)
		}

		out := make(chan any)
		go func() {
			defer close(out)
			for v := range src.C {
				if t.Filter != nil && !t.Filter(v, args) {
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}()

		return &resolver.Subscription{
			C:       out,
			Cleanup: func() { src.Unsubscribe(t.OnUnsubscribe) },
		}, nil
	}
}
