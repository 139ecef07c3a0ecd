package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/compiler"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	d "github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

func blog(t *testing.T) *metadata.Application {
	t.Helper()
	app, err := compiler.New().Compile(d.App("blog").
		Model("User", d.Object(
			d.Field("id", d.Number()),
			d.Field("displayName", d.String()),
			d.Field("posts", d.Array(d.Ref("Post"))),
		)).
		Model("Post", d.Object(
			d.Field("id", d.Number()),
			d.Field("title", d.String()),
			d.Field("status", d.Enum("draft", "published")),
			d.Field("notes", d.String()).Optional(),
			d.Field("tags", d.Array(d.String())),
			d.Field("author", d.Ref("User")).Nullable(),
			d.Field("categories", d.Array(d.Ref("Category"))),
		)).
		Model("Category", d.Object(
			d.Field("id", d.Number()),
			d.Field("name", d.String()),
		)))
	require.NoError(t, err)
	return app
}

func TestFromMetadata(t *testing.T) {
	reg, err := schema.FromMetadata(blog(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Post", "User"}, reg.List())

	post, ok := reg.Get("Post")
	require.True(t, ok)
	assert.Equal(t, "posts", post.Table)

	var columns []string
	for _, c := range post.Columns {
		columns = append(columns, c.Name)
	}
	assert.Equal(t, []string{"id", "title", "status", "notes"}, columns, "array of strings is not stored")
	assert.True(t, post.PrimaryKey().Primary)
	assert.Equal(t, "id", post.PrimaryKey().Name)
	assert.True(t, post.Column("notes").Nullable)
	assert.False(t, post.Column("title").Nullable)
	assert.Equal(t, metadata.KindEnum, post.Column("status").Kind)

	author := post.Relation("author")
	require.NotNil(t, author)
	assert.Equal(t, schema.BelongsTo, author.Kind)
	assert.Equal(t, "User", author.Target)
	assert.Equal(t, "author_id", author.ForeignKey)

	categories := post.Relation("categories")
	require.NotNil(t, categories)
	assert.Equal(t, schema.HasMany, categories.Kind)
	assert.Equal(t, "post_id", categories.ForeignKey)

	user, _ := reg.Get("User")
	assert.Equal(t, "display_name", user.Column("displayName").Column)
	assert.Equal(t, "displayName", user.Property("display_name"))
	assert.Equal(t, "author_id", user.Property("author_id"))
	assert.Equal(t, "author_id", user.Relation("posts").ForeignKey, "inverse belongs-to key")
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(&schema.Entity{Name: "Post"}))
	assert.Error(t, reg.Register(&schema.Entity{Name: "Post"}))
	assert.Error(t, reg.Register(&schema.Entity{}))
}

func TestNaming(t *testing.T) {
	tests := []struct {
		in, snake, table string
	}{
		{"Post", "post", "posts"},
		{"Category", "category", "categories"},
		{"Address", "address", "addresses"},
		{"BlogEntry", "blog_entry", "blog_entries"},
		{"HTTPServer", "http_server", "http_servers"},
		{"Day", "day", "days"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.snake, schema.ToSnakeCase(tt.in))
			assert.Equal(t, tt.table, schema.ToTableName(tt.in))
		})
	}
	assert.Equal(t, "has_many", schema.HasMany.String())
}
