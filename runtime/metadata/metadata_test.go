package metadata

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogApp() *Application {
	return &Application{
		Name: "blog",
		Models: []*TypeMetadata{
			{
				Kind:         KindObject,
				TypeName:     "Post",
				PropertyPath: "Post",
				Properties: []*TypeMetadata{
					{Kind: KindNumber, PropertyName: "id", PropertyPath: "Post.id"},
					{Kind: KindString, PropertyName: "title", PropertyPath: "Post.title"},
					{Kind: KindReference, TypeName: "Category", PropertyName: "categories", PropertyPath: "Post.categories", Array: true},
				},
			},
			{
				Kind:         KindObject,
				TypeName:     "Category",
				PropertyPath: "Category",
				Properties: []*TypeMetadata{
					{Kind: KindNumber, PropertyName: "id", PropertyPath: "Category.id"},
					{Kind: KindReference, TypeName: "Post", PropertyName: "posts", PropertyPath: "Category.posts", Array: true},
				},
			},
		},
		Queries: []*TypeMetadata{
			{
				Kind:         KindReference,
				TypeName:     "Post",
				PropertyName: "post",
				PropertyPath: "post",
				Nullable:     true,
				Args: []*TypeMetadata{{
					Kind:         KindObject,
					TypeName:     "PostArgs",
					PropertyPath: "post.args",
					Properties: []*TypeMetadata{
						{Kind: KindNumber, PropertyName: "id", PropertyPath: "post.args.id"},
					},
				}},
			},
		},
		Actions: []*Action{
			{
				Name:   "GET /posts/:id",
				Method: "GET",
				Path:   "/posts/:id",
				Return: &TypeMetadata{Kind: KindReference, TypeName: "Post"},
				Params: &TypeMetadata{Kind: KindObject, Properties: []*TypeMetadata{
					{Kind: KindString, PropertyName: "id"},
				}},
			},
		},
	}
}

func TestKind_RoundTrip(t *testing.T) {
	for k := KindNumber; k <= KindProperty; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("tuple")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestKind_JSON(t *testing.T) {
	data, err := json.Marshal(KindReference)
	require.NoError(t, err)
	assert.Equal(t, `"reference"`, string(data))

	var k Kind
	require.NoError(t, json.Unmarshal([]byte(`"enum"`), &k))
	assert.Equal(t, KindEnum, k)

	assert.Error(t, json.Unmarshal([]byte(`3`), &k))
}

func TestKind_Classification(t *testing.T) {
	assert.True(t, KindBigInt.IsPrimitive())
	assert.False(t, KindObject.IsPrimitive())
	assert.True(t, KindFunction.IsReserved())
	assert.True(t, KindProperty.IsReserved())
	assert.False(t, KindUnion.IsReserved())
}

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"draft", true},
		{"_private", true},
		{"Published2", true},
		{"2fast", false},
		{"with-dash", false},
		{"", false},
		{"has space", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIdentifier(tt.in))
		})
	}
}

func TestTypeMetadata_CloneIsDeep(t *testing.T) {
	app := blogApp()
	post := app.Model("Post")
	clone := post.Clone()

	clone.Properties[0].PropertyName = "changed"
	clone.Properties = append(clone.Properties, &TypeMetadata{Kind: KindString})

	assert.Equal(t, "id", post.Properties[0].PropertyName)
	assert.Len(t, post.Properties, 3)
}

func TestTypeMetadata_Walk(t *testing.T) {
	app := blogApp()

	var paths []string
	app.Queries[0].Walk(func(node *TypeMetadata, path []string) bool {
		paths = append(paths, JoinPath(path...))
		return true
	})

	assert.Equal(t, []string{"post", "post.args", "post.args.id"}, paths)
}

func TestTypeMetadata_WalkSkipsChildren(t *testing.T) {
	post := blogApp().Model("Post")

	count := 0
	post.Walk(func(node *TypeMetadata, _ []string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestApplication_Lookups(t *testing.T) {
	app := blogApp()

	assert.NotNil(t, app.Model("Post"))
	assert.Nil(t, app.Input("Post"))
	assert.NotNil(t, app.Named("Category"))
	assert.NotNil(t, app.Root(GroupQueries, "post"))
	assert.Nil(t, app.Root(GroupMutations, "post"))
	assert.NotNil(t, app.Action("GET /posts/:id"))
	assert.Equal(t, []string{"id", "title", "categories"}, app.Model("Post").PropertyNames())
}

func TestParseActionName(t *testing.T) {
	method, path, err := ParseActionName("get /posts/:id")
	require.NoError(t, err)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/posts/:id", path)

	_, _, err = ParseActionName("FETCH /posts")
	assert.Error(t, err)

	_, _, err = ParseActionName("GET posts")
	assert.Error(t, err)

	_, _, err = ParseActionName("GET")
	assert.Error(t, err)
}

func TestAction_PathParams(t *testing.T) {
	act := &Action{Path: "/users/:userId/posts/:id"}
	assert.Equal(t, []string{"userId", "id"}, act.PathParams())
}

func TestAction_Slots(t *testing.T) {
	act := &Action{}
	body := &TypeMetadata{Kind: KindObject}
	require.NoError(t, act.SetSlot("body", body))
	assert.Same(t, body, act.Slot("body"))
	assert.Error(t, act.SetSlot("form", body))
	assert.Nil(t, act.Slot("form"))
}

func TestApplication_SerializationRoundTrip(t *testing.T) {
	app := blogApp()

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := app.Encode(format)
			require.NoError(t, err)

			decoded, err := Decode(data, format)
			require.NoError(t, err)
			assert.Equal(t, app, decoded)
		})
	}
}

func TestApplication_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	app := blogApp()

	for _, name := range []string{"app.json", "app.yaml", "nested/app.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, app.Save(path))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, app, loaded)
	}

	_, err := Load(filepath.Join(dir, "app.toml"))
	assert.Error(t, err)
}

func TestApplication_Hash(t *testing.T) {
	a, err := blogApp().Hash()
	require.NoError(t, err)
	b, err := blogApp().Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := blogApp()
	changed.Name = "other"
	c, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestApplication_CloneIndependent(t *testing.T) {
	app := blogApp()
	clone := app.Clone()
	clone.Actions[0].Return.TypeName = "Category"
	clone.Append(GroupQueries, &TypeMetadata{Kind: KindString, PropertyName: "hello"})

	assert.Equal(t, "Post", app.Actions[0].Return.TypeName)
	assert.Len(t, app.Queries, 1)
	assert.Len(t, clone.Queries, 2)
}
