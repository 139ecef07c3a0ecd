// Package schema turns application type metadata into an executable GraphQL
// schema whose fields are resolved through the dispatch engine.
package schema

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/runtime/crud"
	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/naming"
	"github.com/conduit-lang/typegraph/runtime/pubsub"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// Result is the outcome of a build.
type Result struct {
	Schema graphql.Schema
	// Resolvers and Subscribers are keyed by field coordinate, such as
	// "Query.posts" or "Post.author".
	Resolvers   map[string]graphql.FieldResolveFn
	Subscribers map[string]graphql.FieldResolveFn
}

// Option configures a Builder
type Option func(*Builder)

// WithNaming sets the naming strategy for generated type names
func WithNaming(s *naming.Strategy) Option {
	return func(b *Builder) { b.naming = s.WithDefaults() }
}

// WithEngine sets the dispatch engine resolvers run through
func WithEngine(e *dispatch.Engine) Option {
	return func(b *Builder) { b.engine = e }
}

// WithPersistence attaches the source of relation resolvers
func WithPersistence(p crud.Persistence) Option {
	return func(b *Builder) { b.persistence = p }
}

// WithBroker attaches the pub/sub broker trigger subscriptions listen on
func WithBroker(broker pubsub.Broker) Option {
	return func(b *Builder) { b.broker = broker }
}

// WithLogger sets the builder logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder builds a GraphQL schema from an application.
type Builder struct {
	app         *metadata.Application
	registry    *resolver.Registry
	naming      *naming.Strategy
	engine      *dispatch.Engine
	persistence crud.Persistence
	broker      pubsub.Broker
	logger      *zap.Logger

	objects map[string]*graphql.Object
	inputs  map[string]*graphql.InputObject
	enums   map[string]*graphql.Enum
	unions  map[string]*graphql.Union
	names   map[string]string // type name -> shape signature
	bySig   map[string]string // shape signature -> type name

	resolvers   map[string]graphql.FieldResolveFn
	subscribers map[string]graphql.FieldResolveFn
	errs        []error
	result      *Result
}

// NewBuilder creates a builder for app backed by registry
func NewBuilder(app *metadata.Application, registry *resolver.Registry, opts ...Option) *Builder {
	if registry == nil {
		registry = resolver.New()
	}
	b := &Builder{
		app:         app,
		registry:    registry,
		naming:      naming.Default(),
		logger:      zap.NewNop(),
		objects:     make(map[string]*graphql.Object),
		inputs:      make(map[string]*graphql.InputObject),
		enums:       make(map[string]*graphql.Enum),
		unions:      make(map[string]*graphql.Union),
		names:       make(map[string]string),
		bySig:       make(map[string]string),
		resolvers:   make(map[string]graphql.FieldResolveFn),
		subscribers: make(map[string]graphql.FieldResolveFn),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.engine == nil {
		b.engine = dispatch.New(registry, dispatch.WithLogger(b.logger), dispatch.WithApplication(app))
	}
	return b
}

// Engine returns the dispatch engine used by built resolvers
func (b *Builder) Engine() *dispatch.Engine {
	return b.engine
}

// Build creates the schema. Later calls return the first result.
func (b *Builder) Build() (*Result, error) {
	if b.result != nil {
		return b.result, nil
	}
	if err := checkReserved(b.app); err != nil {
		return nil, err
	}

	config := graphql.SchemaConfig{
		Query:        b.rootObject(metadata.GroupQueries, "Query"),
		Mutation:     b.rootObject(metadata.GroupMutations, "Mutation"),
		Subscription: b.rootObject(metadata.GroupSubscriptions, "Subscription"),
	}

	s, err := graphql.NewSchema(config)
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	b.result = &Result{
		Schema:      s,
		Resolvers:   b.resolvers,
		Subscribers: b.subscribers,
	}
	b.logger.Debug("built schema",
		zap.String("app", b.app.Name),
		zap.Int("objects", len(b.objects)),
		zap.Int("inputs", len(b.inputs)),
		zap.Int("enums", len(b.enums)),
		zap.Int("unions", len(b.unions)),
		zap.Int("resolvers", len(b.resolvers)))
	return b.result, nil
}

func (b *Builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// checkReserved rejects the kinds that have no GraphQL form.
func checkReserved(app *metadata.Application) error {
	var errs []error
	visit := func(root *metadata.TypeMetadata) {
		root.Walk(func(node *metadata.TypeMetadata, path []string) bool {
			if node.Kind.IsReserved() {
				errs = append(errs, fmt.Errorf("reserved kind %s at %s", node.Kind, metadata.JoinPath(path...)))
			}
			return true
		})
	}
	for _, g := range []metadata.Group{metadata.GroupModels, metadata.GroupInputs, metadata.GroupQueries, metadata.GroupMutations, metadata.GroupSubscriptions} {
		for _, root := range app.Group(g) {
			visit(root)
		}
	}
	for _, a := range app.Actions {
		for _, slot := range metadata.ActionSlots {
			if md := a.Slot(slot); md != nil {
				visit(md)
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Builder) rootObject(g metadata.Group, name string) *graphql.Object {
	fields := graphql.Fields{}
	for _, md := range b.app.Group(g) {
		field := fieldName(md)
		fields[field] = b.rootField(g, name, field, md)
	}

	if len(fields) == 0 {
		if g != metadata.GroupQueries {
			return nil
		}
		fields["_schema"] = &graphql.Field{
			Type:        graphql.String,
			Description: "Placeholder field when the application declares no queries",
			Resolve: func(graphql.ResolveParams) (interface{}, error) {
				return b.app.Name, nil
			},
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   name,
		Fields: fields,
	})
}

func fieldName(md *metadata.TypeMetadata) string {
	if md.PropertyName != "" {
		return md.PropertyName
	}
	return md.TypeName
}
