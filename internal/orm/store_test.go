package orm_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/compiler"
	"github.com/conduit-lang/typegraph/internal/orm"
	"github.com/conduit-lang/typegraph/runtime/crud"
	d "github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

func blog(t *testing.T) *metadata.Application {
	t.Helper()
	app, err := compiler.New().Compile(d.App("blog").
		Model("User", d.Object(
			d.Field("id", d.Number()),
			d.Field("name", d.String()),
			d.Field("posts", d.Array(d.Ref("Post"))),
		)).
		Model("Post", d.Object(
			d.Field("id", d.Number()),
			d.Field("title", d.String()),
			d.Field("status", d.Enum("draft", "published")),
			d.Field("author", d.Ref("User")).Nullable(),
		)))
	require.NoError(t, err)
	return app
}

func openStore(t *testing.T, app *metadata.Application) *orm.Store {
	t.Helper()
	store, err := orm.Open("sqlite3", filepath.Join(t.TempDir(), "blog.db"), app)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	n, err := store.Migrate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	return store
}

func TestStore_Migrate(t *testing.T) {
	store := openStore(t, blog(t))

	n, err := store.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "applied migrations are skipped")

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestStore_Metadata(t *testing.T) {
	store := openStore(t, blog(t))

	assert.True(t, store.HasMetadata("Post"))
	assert.False(t, store.HasMetadata("Comment"))

	md, err := store.Metadata("User")
	require.NoError(t, err)
	assert.True(t, md.HasColumn("name"))
	rel := md.Relation("posts")
	require.NotNil(t, rel)
	assert.Equal(t, crud.Relation{Name: "posts", Target: "Post", Many: true}, *rel)

	_, err = store.Metadata("Comment")
	assert.Error(t, err)
}

func TestStore_RepositoryAndRelations(t *testing.T) {
	store := openStore(t, blog(t))
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []crud.Event
	)
	store.OnChange(func(e crud.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	users, err := store.Repository("User")
	require.NoError(t, err)
	posts, err := store.Repository("Post")
	require.NoError(t, err)

	ann, err := users.Save(ctx, map[string]any{"name": "ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ann["id"])

	post, err := posts.Save(ctx, map[string]any{"title": "hello", "status": "draft", "author": map[string]any{"id": ann["id"]}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), post["author_id"])

	post, err = posts.Save(ctx, map[string]any{"id": post["id"], "status": "published"})
	require.NoError(t, err)
	assert.Equal(t, "published", post["status"])
	assert.Equal(t, "hello", post["title"])

	n, err := posts.Count(ctx, crud.FindOptions{Where: map[string]any{"status": "published"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	authors, err := store.LoadRelation(ctx, "Post", "author", []any{post})
	require.NoError(t, err)
	assert.Equal(t, "ann", authors[0].(map[string]any)["name"])

	written, err := store.LoadRelation(ctx, "User", "posts", []any{ann})
	require.NoError(t, err)
	require.Len(t, written[0], 1)
	assert.Equal(t, "hello", written[0].([]any)[0].(map[string]any)["title"])

	ok, err := posts.Remove(ctx, map[string]any{"id": post["id"]})
	require.NoError(t, err)
	assert.True(t, ok)

	mu.Lock()
	defer mu.Unlock()
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Model+"."+string(e.Type))
	}
	assert.Equal(t, []string{"User.insert", "Post.insert", "Post.update", "Post.remove"}, kinds)
}

func TestStore_GraphQL(t *testing.T) {
	app := blog(t)
	store := openStore(t, app)
	registry := resolver.New()

	_, err := crud.Extend(app, registry, store)
	require.NoError(t, err)
	result, err := schema.NewBuilder(app, registry, schema.WithPersistence(store)).Build()
	require.NoError(t, err)

	do := func(query string) map[string]any {
		t.Helper()
		res := graphql.Do(graphql.Params{Schema: result.Schema, RequestString: query, Context: context.Background()})
		require.Empty(t, res.Errors)
		return res.Data.(map[string]any)
	}

	do(`mutation { userSave(values: {name: "ann"}) { id } }`)
	do(`mutation { postSave(values: {title: "one", status: published, author: {id: 1}}) { id } }`)
	do(`mutation { postSave(values: {title: "two", status: draft, author: {id: 1}}) { id } }`)

	data := do(`{ postMany(order: [{title: DESC}]) { title status author { name } } }`)
	assert.Equal(t, []any{
		map[string]any{"title": "two", "status": "draft", "author": map[string]any{"name": "ann"}},
		map[string]any{"title": "one", "status": "published", "author": map[string]any{"name": "ann"}},
	}, data["postMany"])

	data = do(`{ userOne(where: {name: "ann"}) { posts { title } } postCount(where: {status: draft}) }`)
	assert.Len(t, data["userOne"].(map[string]any)["posts"], 2)
	assert.Equal(t, 1.0, data["postCount"])
}

func TestStore_RelationFilters(t *testing.T) {
	app := blog(t)
	store := openStore(t, app)
	registry := resolver.New()

	_, err := crud.Extend(app, registry, store)
	require.NoError(t, err)
	result, err := schema.NewBuilder(app, registry, schema.WithPersistence(store)).Build()
	require.NoError(t, err)

	do := func(query string) map[string]any {
		t.Helper()
		res := graphql.Do(graphql.Params{Schema: result.Schema, RequestString: query, Context: context.Background()})
		require.Empty(t, res.Errors)
		return res.Data.(map[string]any)
	}

	do(`mutation { userSave(values: {name: "ann"}) { id } }`)
	do(`mutation { userSave(values: {name: "bob"}) { id } }`)
	do(`mutation { postSave(values: {title: "one", status: published, author: {id: 1}}) { id } }`)
	do(`mutation { postSave(values: {title: "two", status: draft, author: {id: 2}}) { id } }`)

	data := do(`{ postMany(where: {author: {name: "bob"}}) { title } postCount(where: {author: {id: 1}}) }`)
	assert.Equal(t, []any{map[string]any{"title": "two"}}, data["postMany"])
	assert.Equal(t, 1.0, data["postCount"])

	data = do(`{ userMany(where: {posts: {status: published}}) { name } }`)
	assert.Equal(t, []any{map[string]any{"name": "ann"}}, data["userMany"])

	data = do(`mutation { postRemove(where: {id: 1, author: {id: 2}}) }`)
	assert.Equal(t, false, data["postRemove"])
	data = do(`{ postCount }`)
	assert.Equal(t, 2.0, data["postCount"])

	data = do(`mutation { postRemove(where: {id: 1, author: {name: "ann"}}) }`)
	assert.Equal(t, true, data["postRemove"])
}
