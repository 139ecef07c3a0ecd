package declare

import (
	"testing"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/stretchr/testify/assert"
)

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"number", Number(), "number"},
		{"bigint literal", BigIntLit("10"), "10n"},
		{"string literal", StringLit("draft"), `"draft"`},
		{"bool literal", BoolLit(true), "true"},
		{"number literal", NumberLit(1.5), "1.5"},
		{"nullable", Nullable(String()), "string | null"},
		{"optional", Optional(Number()), "number | undefined"},
		{"array of union", Array(Union(Ref("A"), Ref("B"))), "(A | B)[]"},
		{"intersection", Intersection(Ref("A"), Object(Field("x", Number()))), "A & {x: number}"},
		{"enum", Enum("draft", "published"), `"draft" | "published"`},
		{"named", Named("Point", Object(Field("x", Number()))), "Point={x: number}"},
		{"model args", ModelWithArgs(Ref("Post"), Object(Field("title", Object()))), "ModelWithArgs<Post, {title: {}}>"},
		{"func", Func(Object(Field("id", Number())), Ref("Post")), "(args: {id: number}) => Post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestFieldModifiers(t *testing.T) {
	f := Field("title", String()).Optional().Nullable().Describe("The title").Deprecate("use name")

	assert.True(t, f.IsOptional)
	assert.True(t, f.IsNullable)
	assert.Equal(t, "The title", f.Description)
	assert.Equal(t, "use name", f.Deprecated)
	assert.Equal(t, `title?: string | null @description("The title") @deprecated("use name")`, f.String())
}

func TestApplicationBuilder(t *testing.T) {
	app := App("blog").
		Describe("Blog API").
		Model("Post", Object(Field("id", Number()))).
		Input("PostFilter", Object(Field("skip", Number()))).
		Query("posts", Array(Ref("Post")), "All posts").
		Mutation("savePost", Ref("Post")).
		Subscription("postSaved", Ref("Post")).
		Action("GET /posts", Object(Field("return", Array(Ref("Post")))))

	assert.Equal(t, "Blog API", app.Description)
	assert.Len(t, app.Group(metadata.GroupModels), 1)
	assert.Len(t, app.Group(metadata.GroupActions), 1)
	assert.Equal(t, "All posts", app.Queries[0].Description)
	assert.Equal(t, map[string]metadata.Group{
		"Post":       metadata.GroupModels,
		"PostFilter": metadata.GroupInputs,
	}, app.NamedTypes())
	assert.Nil(t, app.Group("unknown"))
}

func TestFingerprint(t *testing.T) {
	build := func(title Type) *Application {
		return App("blog").Model("Post", Object(Field("title", title)))
	}

	assert.Equal(t, build(String()).Fingerprint(), build(String()).Fingerprint())
	assert.NotEqual(t, build(String()).Fingerprint(), build(Number()).Fingerprint())
	assert.Contains(t, build(String()).Fingerprint(), `models "Post" {title: string}`)
}

func TestNames(t *testing.T) {
	app := App("x").Query("b", Number()).Query("a", Number())
	assert.Equal(t, []string{"a", "b"}, app.Names(metadata.GroupQueries))
}
