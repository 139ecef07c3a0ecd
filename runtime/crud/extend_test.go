package crud_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/compiler"
	"github.com/conduit-lang/typegraph/runtime/crud"
	d "github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/pubsub"
	"github.com/conduit-lang/typegraph/runtime/resolver"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

// memStore is an in-memory crud.Persistence
type memStore struct {
	mu        sync.Mutex
	meta      map[string]*crud.EntityMetadata
	rows      map[string][]map[string]any
	listeners []func(crud.Event)
}

func newMemStore() *memStore {
	return &memStore{
		meta: map[string]*crud.EntityMetadata{
			"Post": {
				Name:      "Post",
				Columns:   []crud.Column{{Name: "id"}, {Name: "title"}, {Name: "status"}},
				Relations: []crud.Relation{{Name: "categories", Target: "Category", Many: true}},
			},
			"Category": {
				Name:      "Category",
				Columns:   []crud.Column{{Name: "id"}, {Name: "name"}},
				Relations: []crud.Relation{{Name: "posts", Target: "Post", Many: true}},
			},
		},
		rows: map[string][]map[string]any{},
	}
}

func (s *memStore) HasMetadata(name string) bool {
	_, ok := s.meta[name]
	return ok
}

func (s *memStore) Metadata(name string) (*crud.EntityMetadata, error) {
	m, ok := s.meta[name]
	if !ok {
		return nil, fmt.Errorf("no entity %s", name)
	}
	return m, nil
}

func (s *memStore) Repository(name string) (crud.Repository, error) {
	if !s.HasMetadata(name) {
		return nil, fmt.Errorf("no entity %s", name)
	}
	return &memRepo{store: s, model: name}, nil
}

func (s *memStore) LoadRelation(_ context.Context, _, _ string, parents []any) ([]any, error) {
	out := make([]any, len(parents))
	for i := range parents {
		out[i] = []any{}
	}
	return out, nil
}

func (s *memStore) OnChange(fn func(crud.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *memStore) emit(e crud.Event) {
	s.mu.Lock()
	listeners := append(([]func(crud.Event))(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(e)
	}
}

type memRepo struct {
	store *memStore
	model string
}

func (r *memRepo) FindMany(_ context.Context, opts crud.FindOptions) ([]map[string]any, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []map[string]any
	for _, row := range r.store.rows[r.model] {
		if crud.Matches(row, opts.Where) {
			out = append(out, row)
		}
	}
	if len(opts.Order) > 0 {
		o := opts.Order[0]
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fmt.Sprint(out[i][o.Field]), fmt.Sprint(out[j][o.Field])
			if o.Desc {
				return a > b
			}
			return a < b
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(out) {
			return nil, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Take > 0 && opts.Take < len(out) {
		out = out[:opts.Take]
	}
	return out, nil
}

func (r *memRepo) FindOne(ctx context.Context, opts crud.FindOptions) (map[string]any, error) {
	rows, err := r.FindMany(ctx, opts)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memRepo) Count(ctx context.Context, opts crud.FindOptions) (int, error) {
	rows, err := r.FindMany(ctx, opts)
	return len(rows), err
}

func (r *memRepo) Save(_ context.Context, values map[string]any) (map[string]any, error) {
	r.store.mu.Lock()
	event := crud.Event{Model: r.model, Type: crud.EventInsert}
	var saved map[string]any
	if id, ok := values["id"]; ok {
		for _, row := range r.store.rows[r.model] {
			if crud.Matches(row, map[string]any{"id": id}) {
				for k, v := range values {
					row[k] = v
				}
				saved, event.Type = row, crud.EventUpdate
			}
		}
	}
	if saved == nil {
		saved = map[string]any{"id": len(r.store.rows[r.model]) + 1}
		for k, v := range values {
			saved[k] = v
		}
		r.store.rows[r.model] = append(r.store.rows[r.model], saved)
	}
	r.store.mu.Unlock()

	event.Record = saved
	r.store.emit(event)
	return saved, nil
}

func (r *memRepo) Remove(_ context.Context, where map[string]any) (bool, error) {
	r.store.mu.Lock()
	var kept, removed []map[string]any
	for _, row := range r.store.rows[r.model] {
		if crud.Matches(row, where) {
			removed = append(removed, row)
		} else {
			kept = append(kept, row)
		}
	}
	r.store.rows[r.model] = kept
	r.store.mu.Unlock()

	for _, row := range removed {
		r.store.emit(crud.Event{Model: r.model, Type: crud.EventRemove, Record: row})
	}
	return len(removed) > 0, nil
}

func blogApp(t *testing.T, extra ...func(*d.Application)) *metadata.Application {
	t.Helper()
	decl := d.App("blog").
		Model("Post", d.Object(
			d.Field("id", d.Number()),
			d.Field("title", d.String()),
			d.Field("status", d.Enum("draft", "published")),
			d.Field("notes", d.String()).Optional(),
			d.Field("categories", d.Array(d.Ref("Category"))),
		)).
		Model("Category", d.Object(
			d.Field("id", d.Number()),
			d.Field("name", d.String()),
			d.Field("posts", d.Array(d.Ref("Post"))),
		))
	for _, fn := range extra {
		fn(decl)
	}
	app, err := compiler.New().Compile(decl)
	require.NoError(t, err)
	return app
}

func propertyNames(md *metadata.TypeMetadata) []string {
	if md == nil {
		return nil
	}
	return md.PropertyNames()
}

func TestExtend_GeneratesRootsAndInputs(t *testing.T) {
	app := blogApp(t)
	registry := resolver.New()

	report, err := crud.Extend(app, registry, newMemStore())
	require.NoError(t, err)

	assert.Equal(t, []string{"Post", "Category"}, report.Models)
	assert.Equal(t, []string{"postOne", "postOneNotNull", "postMany", "postCount", "categoryOne", "categoryOneNotNull", "categoryMany", "categoryCount"},
		report.Roots[metadata.GroupQueries])
	assert.Equal(t, []string{"postSave", "postRemove", "categorySave", "categoryRemove"}, report.Roots[metadata.GroupMutations])
	assert.Empty(t, report.Roots[metadata.GroupSubscriptions], "no broker, no observe subscriptions")

	where := app.Input("PostWhere")
	require.NotNil(t, where)
	assert.Equal(t, []string{"id", "title", "status", "categories"}, propertyNames(where), "notes has no column")
	assert.NotNil(t, app.Input("PostWhereCategories"))
	assert.NotNil(t, app.Input("PostWhereCategoriesPosts"))
	assert.Nil(t, app.Input("PostWhereCategoriesPostsCategories"), "depth stops at two relations")

	order := app.Input("PostOrder")
	require.NotNil(t, order)
	assert.Equal(t, crud.OrderDirection, order.Property("title").TypeName)
	assert.NotNil(t, app.Input(crud.OrderDirection))

	save := app.Input("PostSave")
	require.NotNil(t, save)
	assert.True(t, save.Property("categories").Array)
	assert.True(t, save.Property("title").CanBeUndefined)

	many := app.Root(metadata.GroupQueries, "postMany")
	require.NotNil(t, many)
	assert.True(t, many.Array)
	require.Len(t, many.Args, 1)
	assert.Equal(t, []string{"where", "order", "skip", "take"}, many.Args[0].PropertyNames())

	remove := app.Root(metadata.GroupMutations, "postRemove")
	require.NotNil(t, remove)
	assert.Equal(t, metadata.KindBoolean, remove.Kind)
	assert.False(t, remove.Args[0].Property("where").CanBeUndefined)

	assert.True(t, registry.HasRoot(metadata.GroupQueries, "postMany"))
	assert.True(t, registry.HasRoot(metadata.GroupMutations, "categoryRemove"))
}

func TestExtend_Depth(t *testing.T) {
	app := blogApp(t)
	_, err := crud.Extend(app, resolver.New(), newMemStore(), crud.WithDepth(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title", "status"}, propertyNames(app.Input("PostWhere")))
	assert.Nil(t, app.Input("PostWhereCategories"))
}

func TestExtend_FirstRegisteredWins(t *testing.T) {
	app := blogApp(t, func(a *d.Application) {
		a.Query("postMany", d.Array(d.Ref("Post")))
	})
	registry := resolver.New(resolver.Query("postCount", func(*resolver.Context, resolver.Args) (any, error) {
		return 99, nil
	}))

	report, err := crud.Extend(app, registry, newMemStore())
	require.NoError(t, err)
	assert.Contains(t, report.Skipped, "queries.postMany")
	assert.NotContains(t, report.Roots[metadata.GroupQueries], "postMany")
	assert.False(t, registry.HasRoot(metadata.GroupQueries, "postMany"), "declared root keeps its author resolver slot")

	assert.Contains(t, report.Roots[metadata.GroupQueries], "postCount")
	result, err := schema.NewBuilder(app, registry).Build()
	require.NoError(t, err)
	res := graphql.Do(graphql.Params{Schema: result.Schema, RequestString: `{ postCount }`, Context: context.Background()})
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"postCount": 99.0}, res.Data)
}

func TestExtend_RequiresCollaborators(t *testing.T) {
	_, err := crud.Extend(nil, resolver.New(), newMemStore())
	assert.Error(t, err)
	_, err = crud.Extend(&metadata.Application{}, resolver.New(), nil)
	assert.Error(t, err)
}

type harness struct {
	store  *memStore
	schema graphql.Schema
	hub    *pubsub.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	app := blogApp(t)
	registry := resolver.New()
	store := newMemStore()
	hub := pubsub.NewHub()

	_, err := crud.Extend(app, registry, store, crud.WithBroker(hub))
	require.NoError(t, err)
	result, err := schema.NewBuilder(app, registry, schema.WithPersistence(store), schema.WithBroker(hub)).Build()
	require.NoError(t, err)
	return &harness{store: store, schema: result.Schema, hub: hub}
}

func (h *harness) do(t *testing.T, query string) map[string]any {
	t.Helper()
	res := graphql.Do(graphql.Params{Schema: h.schema, RequestString: query, Context: context.Background()})
	require.Empty(t, res.Errors)
	return res.Data.(map[string]any)
}

func TestExtend_QueriesAndMutations(t *testing.T) {
	h := newHarness(t)

	for _, post := range []string{
		`mutation { postSave(values: {title: "b", status: published}) { id } }`,
		`mutation { postSave(values: {title: "a", status: draft}) { id } }`,
		`mutation { postSave(values: {title: "c", status: published}) { id } }`,
	} {
		h.do(t, post)
	}

	data := h.do(t, `{ postMany(where: {status: published}, order: [{title: DESC}]) { title } }`)
	assert.Equal(t, []any{map[string]any{"title": "c"}, map[string]any{"title": "b"}}, data["postMany"])

	data = h.do(t, `{ postMany(skip: 1, take: 1, order: [{title: ASC}]) { title } }`)
	assert.Equal(t, []any{map[string]any{"title": "b"}}, data["postMany"])

	data = h.do(t, `{ postCount(where: {status: published}) postOne(where: {title: "a"}) { status } missing: postOne(where: {title: "z"}) { id } }`)
	assert.Equal(t, 2.0, data["postCount"])
	assert.Equal(t, map[string]any{"status": "draft"}, data["postOne"])
	assert.Nil(t, data["missing"])

	data = h.do(t, `mutation { postSave(values: {id: 2, title: "a2"}) { id title } }`)
	assert.Equal(t, map[string]any{"id": 2.0, "title": "a2"}, data["postSave"])

	data = h.do(t, `mutation { postRemove(where: {status: draft}) }`)
	assert.Equal(t, true, data["postRemove"])
	data = h.do(t, `{ postCount }`)
	assert.Equal(t, 2.0, data["postCount"])

	res := graphql.Do(graphql.Params{Schema: h.schema, RequestString: `{ postOneNotNull(where: {title: "z"}) { id } }`, Context: context.Background()})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, crud.ErrNotFound.Error())
}

func subscribe(t *testing.T, h *harness, query string) (<-chan *graphql.Result, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return graphql.Subscribe(graphql.Params{Schema: h.schema, RequestString: query, Context: ctx}), cancel
}

func next(t *testing.T, stream <-chan *graphql.Result) map[string]any {
	t.Helper()
	select {
	case res := <-stream:
		require.NotNil(t, res)
		require.Empty(t, res.Errors)
		return res.Data.(map[string]any)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription payload")
		return nil
	}
}

func TestExtend_ObserveInsert(t *testing.T) {
	h := newHarness(t)
	stream, cancel := subscribe(t, h, `subscription { postObserveInsert(where: {status: published}) { title } }`)

	require.Eventually(t, func() bool { return h.hub.Count("Post.insert") == 1 }, 2*time.Second, 10*time.Millisecond)
	h.do(t, `mutation { postSave(values: {title: "hidden", status: draft}) { id } }`)
	h.do(t, `mutation { postSave(values: {title: "shown", status: published}) { id } }`)

	assert.Equal(t, map[string]any{"postObserveInsert": map[string]any{"title": "shown"}}, next(t, stream))

	cancel()
	require.Eventually(t, func() bool { return h.hub.Count("Post.insert") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestExtend_ObserveCount(t *testing.T) {
	h := newHarness(t)
	stream, _ := subscribe(t, h, `subscription { postObserveCount }`)

	assert.Equal(t, map[string]any{"postObserveCount": 0.0}, next(t, stream))

	require.Eventually(t, func() bool { return h.hub.Count("Post.remove") == 1 }, 2*time.Second, 10*time.Millisecond)
	h.do(t, `mutation { postSave(values: {title: "one", status: draft}) { id } }`)
	assert.Equal(t, map[string]any{"postObserveCount": 1.0}, next(t, stream))

	h.do(t, `mutation { postRemove(where: {title: "one"}) }`)
	assert.Equal(t, map[string]any{"postObserveCount": 0.0}, next(t, stream))
}

func TestExtend_SkippedModelDeclaresNoInputs(t *testing.T) {
	app := blogApp(t, func(a *d.Application) {
		a.Model("Draft", d.Object(d.Field("body", d.String())))
	})
	store := newMemStore()
	store.meta = map[string]*crud.EntityMetadata{"Draft": {Name: "Draft"}}

	report, err := crud.Extend(app, resolver.New(), store)
	require.NoError(t, err)
	assert.Empty(t, report.Models)
	assert.Empty(t, report.Inputs)
	assert.Empty(t, app.Inputs)
	assert.Nil(t, app.Input(crud.OrderDirection))
	assert.Nil(t, app.Input("DraftOrder"))
}

func TestExtend_ObserveEventsRejectRelationConditions(t *testing.T) {
	h := newHarness(t)
	stream, _ := subscribe(t, h, `subscription { postObserveInsert(where: {categories: {name: "go"}}) { title } }`)

	select {
	case res := <-stream:
		require.NotNil(t, res)
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[0].Message, crud.ErrUnsupportedFilter.Error())
		assert.Contains(t, res.Errors[0].Message, "categories")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not rejected")
	}
	assert.Equal(t, 0, h.hub.Count("Post.insert"))
}
