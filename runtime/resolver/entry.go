package resolver

import (
	"context"
	"fmt"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// ResolveFunc resolves a root query, mutation or action.
type ResolveFunc func(ctx *Context, args Args) (any, error)

// FieldFunc resolves one field of a model instance.
type FieldFunc func(ctx *Context, parent any, args Args) (any, error)

// BatchFunc resolves one field for many parents at once. It must return one
// result per parent, in the same order.
type BatchFunc func(ctx *Context, parents []any, args Args) ([]any, error)

// SubscribeFunc opens a real-time source for a subscription field.
type SubscribeFunc func(ctx *Context, args Args) (*Subscription, error)

// ContextFunc computes one value merged into every invocation context.
type ContextFunc func(ctx context.Context, req RequestInfo) (any, error)

// Subscription is an open source of payloads. Cleanup is called when the
// subscriber goes away, before the source is released.
type Subscription struct {
	C       <-chan any
	Cleanup func()
}

// Trigger is the static form of a subscription: payloads published on any
// of Topics are delivered when Filter accepts them. Accept, when set, checks
// the arguments before subscribing.
type Trigger struct {
	Topics        []string
	Accept        func(args Args) error
	Filter        func(payload any, args Args) bool
	OnSubscribe   func(ctx *Context, args Args)
	OnUnsubscribe func()
}

// EntryKind tags the registry entry variants
type EntryKind int

const (
	KindDeclaration EntryKind = iota
	KindDeclarationItem
	KindModel
	KindContext
)

func (k EntryKind) String() string {
	switch k {
	case KindDeclaration:
		return "declaration-resolver"
	case KindDeclarationItem:
		return "declaration-item-resolver"
	case KindModel:
		return "model-resolver"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// Entry is one registry entry. The set of implementations is closed.
type Entry interface {
	Kind() EntryKind
	validate() error
}

// DeclarationResolver is a bag of root resolvers keyed by declaration name.
type DeclarationResolver struct {
	Queries       map[string]ResolveFunc
	Mutations     map[string]ResolveFunc
	Subscriptions map[string]SubscribeFunc
	Actions       map[string]ResolveFunc
}

// DeclarationItemResolver resolves a single root declaration. Exactly one of
// Resolve, Subscribe and Value is set.
type DeclarationItemResolver struct {
	Group     metadata.Group
	Name      string
	Resolve   ResolveFunc
	Subscribe SubscribeFunc
	Value     any // static result, or a *Trigger for subscriptions
}

// ModelResolver resolves fields of one named object type.
type ModelResolver struct {
	Model  string
	Fields map[string]FieldFunc
	Batch  map[string]BatchFunc
}

// ContextResolver contributes one named value to every invocation context.
// Either Value or Func is set.
type ContextResolver struct {
	Name  string
	Value any
	Func  ContextFunc
}

func (*DeclarationResolver) Kind() EntryKind     { return KindDeclaration }
func (*DeclarationItemResolver) Kind() EntryKind { return KindDeclarationItem }
func (*ModelResolver) Kind() EntryKind           { return KindModel }
func (*ContextResolver) Kind() EntryKind         { return KindContext }

func (r *DeclarationResolver) validate() error { return nil }

func (r *DeclarationItemResolver) validate() error {
	switch r.Group {
	case metadata.GroupQueries, metadata.GroupMutations, metadata.GroupSubscriptions, metadata.GroupActions:
	default:
		return fmt.Errorf("%w: item resolver %q has group %q", ErrInvalidEntry, r.Name, r.Group)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: item resolver without a name", ErrInvalidEntry)
	}
	set := 0
	if r.Resolve != nil {
		set++
	}
	if r.Subscribe != nil {
		set++
	}
	if r.Value != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: item resolver %s.%s must set exactly one of Resolve, Subscribe, Value", ErrInvalidEntry, r.Group, r.Name)
	}
	return nil
}

func (r *ModelResolver) validate() error {
	if r.Model == "" {
		return fmt.Errorf("%w: model resolver without a model", ErrInvalidEntry)
	}
	return nil
}

func (r *ContextResolver) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: context resolver without a name", ErrInvalidEntry)
	}
	if r.Func != nil && r.Value != nil {
		return fmt.Errorf("%w: context resolver %s sets both Value and Func", ErrInvalidEntry, r.Name)
	}
	return nil
}

// Query creates an item resolver for a query
func Query(name string, fn ResolveFunc) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: metadata.GroupQueries, Name: name, Resolve: fn}
}

// Mutation creates an item resolver for a mutation
func Mutation(name string, fn ResolveFunc) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: metadata.GroupMutations, Name: name, Resolve: fn}
}

// Subscribe creates an item resolver for a subscription
func Subscribe(name string, fn SubscribeFunc) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: metadata.GroupSubscriptions, Name: name, Subscribe: fn}
}

// OnTrigger creates an item resolver for a subscription backed by pub/sub topics
func OnTrigger(name string, trigger *Trigger) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: metadata.GroupSubscriptions, Name: name, Value: trigger}
}

// Action creates an item resolver for an action such as "GET /posts/:id"
func Action(name string, fn ResolveFunc) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: metadata.GroupActions, Name: name, Resolve: fn}
}

// Static creates an item resolver returning a fixed value
func Static(group metadata.Group, name string, value any) *DeclarationItemResolver {
	return &DeclarationItemResolver{Group: group, Name: name, Value: value}
}
