package crud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/naming"
	"github.com/conduit-lang/typegraph/runtime/pubsub"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// ErrNotFound is returned by the generated OneNotNull query when no entity matches
var ErrNotFound = errors.New("entity not found")

// DefaultDepth is the relation nesting depth of generated inputs
const DefaultDepth = 2

// Option configures Extend
type Option func(*extender)

// WithNaming sets the naming strategy for generated names
func WithNaming(s *naming.Strategy) Option {
	return func(x *extender) { x.naming = s.WithDefaults() }
}

// WithDepth sets how many relation levels generated inputs follow
func WithDepth(depth int) Option {
	return func(x *extender) {
		if depth >= 0 {
			x.depth = depth
		}
	}
}

// WithBroker attaches a pub/sub broker. Observe subscriptions are generated
// only when one is attached.
func WithBroker(b pubsub.Broker) Option {
	return func(x *extender) { x.broker = b }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(x *extender) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// Report lists what Extend generated and what it left alone.
type Report struct {
	Models  []string
	Roots   map[metadata.Group][]string
	Inputs  []string
	Skipped []string // roots already declared or resolved
}

type extender struct {
	app         *metadata.Application
	registry    *resolver.Registry
	persistence Persistence
	naming      *naming.Strategy
	depth       int
	broker      pubsub.Broker
	logger      *zap.Logger
	entries     []resolver.Entry
	report      *Report
}

// Extend appends generated CRUD roots, inputs and resolvers for every model
// the persistence layer knows. A root name that is already declared or
// resolved is left untouched.
func Extend(app *metadata.Application, registry *resolver.Registry, p Persistence, opts ...Option) (*Report, error) {
	if app == nil || registry == nil || p == nil {
		return nil, errors.New("crud: application, registry and persistence are required")
	}
	x := &extender{
		app:         app,
		registry:    registry,
		persistence: p,
		naming:      naming.Default(),
		depth:       DefaultDepth,
		logger:      zap.NewNop(),
		report:      &Report{Roots: make(map[metadata.Group][]string)},
	}
	for _, opt := range opts {
		opt(x)
	}

	models := append([]*metadata.TypeMetadata(nil), app.Models...)
	for _, m := range models {
		if m.Kind != metadata.KindObject || !p.HasMetadata(m.TypeName) {
			continue
		}
		if err := x.model(m); err != nil {
			return nil, fmt.Errorf("crud %s: %w", m.TypeName, err)
		}
	}

	if len(x.entries) > 0 {
		if err := registry.Register(x.entries...); err != nil {
			return nil, err
		}
	}
	if x.broker != nil {
		p.OnChange(x.publish)
	}

	x.logger.Debug("crud extension applied",
		zap.Strings("models", x.report.Models),
		zap.Int("inputs", len(x.report.Inputs)),
		zap.Strings("skipped", x.report.Skipped))
	return x.report, nil
}

func (x *extender) model(m *metadata.TypeMetadata) error {
	name := m.TypeName
	if _, err := x.persistence.Metadata(name); err != nil {
		return err
	}

	inputs, declared := len(x.app.Inputs), len(x.report.Inputs)
	where := x.input(whereInput, name, m, nil)
	save := x.input(saveInput, name, m, nil)
	if where == "" || save == "" {
		// drop the half of the pair that was declared
		x.app.Inputs = x.app.Inputs[:inputs]
		x.report.Inputs = x.report.Inputs[:declared]
		x.logger.Warn("model has no stored columns, skipping", zap.String("model", name))
		return nil
	}
	x.orderDirection()
	order := x.input(orderInput, name, m, nil)
	x.report.Models = append(x.report.Models, name)

	whereArg := func(required bool) *metadata.TypeMetadata {
		a := ref(where)
		a.PropertyName = "where"
		a.CanBeUndefined = !required
		return a
	}
	number := func(prop string) *metadata.TypeMetadata {
		return &metadata.TypeMetadata{Kind: metadata.KindNumber, PropertyName: prop, CanBeUndefined: true}
	}
	manyArgs := []*metadata.TypeMetadata{whereArg(false)}
	if order != "" {
		o := ref(order)
		o.PropertyName = "order"
		o.Array = true
		o.CanBeUndefined = true
		manyArgs = append(manyArgs, o)
	}
	manyArgs = append(manyArgs, number("skip"), number("take"))
	values := ref(save)
	values.PropertyName = "values"

	one, many, count := x.findOne(name, false), x.findMany(name), x.count(name)

	x.root(metadata.GroupQueries, x.naming.QueryOne(name), "one", name,
		x.result(name, false, true), []*metadata.TypeMetadata{whereArg(false)}, one, nil)
	x.root(metadata.GroupQueries, x.naming.QueryOneNotNull(name), "oneNotNull", name,
		x.result(name, false, false), []*metadata.TypeMetadata{whereArg(false)}, x.findOne(name, true), nil)
	x.root(metadata.GroupQueries, x.naming.QueryMany(name), "many", name,
		x.result(name, true, false), manyArgs, many, nil)
	x.root(metadata.GroupQueries, x.naming.QueryCount(name), "count", name,
		&metadata.TypeMetadata{Kind: metadata.KindNumber}, []*metadata.TypeMetadata{whereArg(false)}, count, nil)
	x.root(metadata.GroupMutations, x.naming.MutationSave(name), "save", name,
		x.result(name, false, false), []*metadata.TypeMetadata{values}, x.save(name), nil)
	x.root(metadata.GroupMutations, x.naming.MutationRemove(name), "remove", name,
		&metadata.TypeMetadata{Kind: metadata.KindBoolean}, []*metadata.TypeMetadata{whereArg(true)}, x.remove(name), nil)

	if x.broker == nil {
		return nil
	}
	for _, event := range naming.ObserveEvents {
		field := x.naming.Observe(name, event)
		kind := "observe" + string(event)
		var (
			md        *metadata.TypeMetadata
			subscribe resolver.SubscribeFunc
			trigger   *resolver.Trigger
		)
		args := []*metadata.TypeMetadata{whereArg(false)}
		switch event {
		case naming.EventOne:
			md, subscribe = x.result(name, false, true), x.observeQuery(name, one)
		case naming.EventMany:
			md, subscribe, args = x.result(name, true, false), x.observeQuery(name, many), manyArgs
		case naming.EventCount:
			md, subscribe = &metadata.TypeMetadata{Kind: metadata.KindNumber}, x.observeQuery(name, count)
		default:
			md, trigger = x.result(name, false, false), &resolver.Trigger{
				Topics: Topics(name, event),
				Accept: func(args resolver.Args) error {
					if keys := RelationConditions(args.Map("where")); len(keys) > 0 {
						return fmt.Errorf("%w: %s events carry stored columns only, cannot filter on %s",
							ErrUnsupportedFilter, name, strings.Join(keys, ", "))
					}
					return nil
				},
				Filter: func(payload any, args resolver.Args) bool {
					record, _ := payload.(map[string]any)
					return Matches(record, args.Map("where"))
				},
			}
		}
		if trigger != nil {
			x.rootTrigger(field, kind, name, md, args, trigger)
			continue
		}
		x.root(metadata.GroupSubscriptions, field, kind, name, md, args, nil, subscribe)
	}
	return nil
}

func (x *extender) result(model string, many, nullable bool) *metadata.TypeMetadata {
	md := ref(model)
	md.Array = many
	md.Nullable = nullable
	return md
}

// declare appends the IR root unless one with the same name exists
func (x *extender) declare(g metadata.Group, field, kind, model string, md *metadata.TypeMetadata, args []*metadata.TypeMetadata) bool {
	if x.app.Root(g, field) != nil {
		x.report.Skipped = append(x.report.Skipped, string(g)+"."+field)
		return false
	}
	md.PropertyName = field
	md.PropertyPath = field
	md.Description = x.naming.Description(kind, model)
	if len(args) > 0 {
		obj := &metadata.TypeMetadata{Kind: metadata.KindObject, PropertyName: "args", PropertyPath: metadata.JoinPath(field, "args")}
		for _, a := range args {
			a = a.Clone()
			a.PropertyPath = metadata.JoinPath(field, "args", a.PropertyName)
			obj.Properties = append(obj.Properties, a)
		}
		md.Args = []*metadata.TypeMetadata{obj}
	}
	x.app.Append(g, md)
	x.report.Roots[g] = append(x.report.Roots[g], field)
	return true
}

func (x *extender) root(g metadata.Group, field, kind, model string, md *metadata.TypeMetadata, args []*metadata.TypeMetadata, resolve resolver.ResolveFunc, subscribe resolver.SubscribeFunc) {
	if !x.declare(g, field, kind, model, md, args) || x.registry.HasRoot(g, field) {
		return
	}
	item := &resolver.DeclarationItemResolver{Group: g, Name: field, Resolve: resolve, Subscribe: subscribe}
	x.entries = append(x.entries, item)
}

func (x *extender) rootTrigger(field, kind, model string, md *metadata.TypeMetadata, args []*metadata.TypeMetadata, t *resolver.Trigger) {
	g := metadata.GroupSubscriptions
	if !x.declare(g, field, kind, model, md, args) || x.registry.HasRoot(g, field) {
		return
	}
	x.entries = append(x.entries, resolver.OnTrigger(field, t))
}

func (x *extender) repository(model string) (Repository, error) {
	repo, err := x.persistence.Repository(model)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", model, err)
	}
	return repo, nil
}

func (x *extender) findOne(model string, notNull bool) resolver.ResolveFunc {
	return func(ctx *resolver.Context, args resolver.Args) (any, error) {
		repo, err := x.repository(model)
		if err != nil {
			return nil, err
		}
		row, err := repo.FindOne(ctx, FindOptions{Where: args.Map("where")})
		if err != nil {
			return nil, err
		}
		if row == nil {
			if notNull {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, model)
			}
			return nil, nil
		}
		return row, nil
	}
}

func (x *extender) findMany(model string) resolver.ResolveFunc {
	return func(ctx *resolver.Context, args resolver.Args) (any, error) {
		repo, err := x.repository(model)
		if err != nil {
			return nil, err
		}
		opts := FindOptions{Where: args.Map("where"), Order: orderFrom(args["order"])}
		if n, ok := args.Int("skip"); ok {
			opts.Skip = n
		}
		if n, ok := args.Int("take"); ok {
			opts.Take = n
		}
		rows, err := repo.FindMany(ctx, opts)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	}
}

func (x *extender) count(model string) resolver.ResolveFunc {
	return func(ctx *resolver.Context, args resolver.Args) (any, error) {
		repo, err := x.repository(model)
		if err != nil {
			return nil, err
		}
		return repo.Count(ctx, FindOptions{Where: args.Map("where")})
	}
}

func (x *extender) save(model string) resolver.ResolveFunc {
	return func(ctx *resolver.Context, args resolver.Args) (any, error) {
		repo, err := x.repository(model)
		if err != nil {
			return nil, err
		}
		return repo.Save(ctx, args.Map("values"))
	}
}

func (x *extender) remove(model string) resolver.ResolveFunc {
	return func(ctx *resolver.Context, args resolver.Args) (any, error) {
		repo, err := x.repository(model)
		if err != nil {
			return nil, err
		}
		return repo.Remove(ctx, args.Map("where"))
	}
}

// observeQuery emits the query result once on subscribe and again after
// every change to the model.
func (x *extender) observeQuery(model string, query resolver.ResolveFunc) resolver.SubscribeFunc {
	return func(ctx *resolver.Context, args resolver.Args) (*resolver.Subscription, error) {
		src, err := x.broker.Subscribe(ctx, Topics(model, naming.EventMany)...)
		if err != nil {
			return nil, err
		}

		out := make(chan any, 1)
		go func() {
			defer close(out)
			emit := func() bool {
				v, err := query(ctx, args)
				if err != nil {
					x.logger.Warn("observe query failed", zap.String("model", model), zap.Error(err))
					return true
				}
				select {
				case out <- v:
					return true
				case <-ctx.Done():
					return false
				}
			}
			if !emit() {
				return
			}
			for range src.C {
				if !emit() {
					return
				}
			}
		}()

		return &resolver.Subscription{C: out, Cleanup: func() { src.Unsubscribe() }}, nil
	}
}

func (x *extender) publish(e Event) {
	topic := Topic(e.Model, e.Type)
	if err := x.broker.Publish(context.Background(), topic, e.Record); err != nil {
		x.logger.Warn("failed to publish change", zap.String("topic", topic), zap.Error(err))
	}
}

// Topic is the broker topic a change event is published on
func Topic(model string, t EventType) string {
	return model + "." + string(t)
}

// Topics returns the change topics an observe event listens to
func Topics(model string, event naming.Event) []string {
	switch event {
	case naming.EventInsert:
		return []string{Topic(model, EventInsert)}
	case naming.EventUpdate:
		return []string{Topic(model, EventUpdate)}
	case naming.EventSave:
		return []string{Topic(model, EventInsert), Topic(model, EventUpdate)}
	case naming.EventRemove:
		return []string{Topic(model, EventRemove)}
	default:
		return []string{Topic(model, EventInsert), Topic(model, EventUpdate), Topic(model, EventRemove)}
	}
}

// orderFrom converts the order argument. Keys inside one element are taken
// alphabetically; nested relation orders become dotted fields.
func orderFrom(v any) []Order {
	list, _ := v.([]any)
	var out []Order
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, orderEntries("", m)...)
	}
	return out
}

func orderEntries(prefix string, m map[string]any) []Order {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Order
	for _, k := range keys {
		field := metadata.JoinPath(prefix, k)
		switch dir := m[k].(type) {
		case string:
			out = append(out, Order{Field: field, Desc: strings.EqualFold(dir, "DESC")})
		case map[string]any:
			out = append(out, orderEntries(field, dir)...)
		}
	}
	return out
}
