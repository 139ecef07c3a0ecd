package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileError_Error(t *testing.T) {
	err := New(ErrNestedArray, "arrays of arrays are not supported").
		At(metadata.GroupQueries, "matrix").
		WithPath([]string{"matrix", "rows"})

	assert.Equal(t, "TG002 queries.matrix.rows: arrays of arrays are not supported", err.Error())
	assert.Equal(t, "TG001: boom", New(ErrUnsupportedShape, "boom").Error())
}

func TestCompileError_CopiesOnModify(t *testing.T) {
	base := New(ErrNestedArray, "x")
	located := base.At(metadata.GroupModels, "Post")

	assert.Empty(t, base.Declaration)
	assert.Equal(t, "Post", located.Declaration)

	path := []string{"a"}
	withPath := base.WithPath(path)
	path[0] = "changed"
	assert.Equal(t, []string{"a"}, withPath.Path)
}

func TestCompileError_Is(t *testing.T) {
	err := fmt.Errorf("compile: %w", Newf(ErrMissingActionReturn, "action %s", "GET /x"))

	assert.True(t, stderrors.Is(err, New(ErrMissingActionReturn, "")))
	assert.False(t, stderrors.Is(err, New(ErrNestedArray, "")))
}

func TestHasCode(t *testing.T) {
	list := List{New(ErrNestedArray, "a"), New(ErrInvalidEnumMember, "b")}

	assert.True(t, HasCode(list, ErrInvalidEnumMember))
	assert.False(t, HasCode(list, ErrMissingActionReturn))
	assert.True(t, HasCode(New(ErrNestedArray, ""), ErrNestedArray))
	assert.False(t, HasCode(stderrors.New("plain"), ErrNestedArray))
}

func TestCollector(t *testing.T) {
	c := NewCollectorWithMax(2)
	assert.NoError(t, c.Err())

	c.Add(nil)
	c.Add(New(ErrNestedArray, "one"))
	c.Add(stderrors.New("plain"))
	c.Add(New(ErrMixedLiteralUnion, "dropped"))

	require.True(t, c.HasErrors())
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, ErrUnsupportedShape, c.Errors()[1].Code)
	assert.Equal(t, SuggestionFor(ErrNestedArray), c.Errors()[0].Suggestion)

	var list List
	require.True(t, stderrors.As(c.Err(), &list))
	assert.Len(t, list, 2)
}

func TestCollector_FlattensLists(t *testing.T) {
	c := NewCollector()
	c.Add(List{New(ErrNestedArray, "a"), New(ErrNestedArray, "b")})
	assert.Equal(t, 2, c.Count())
}

func TestList_Error(t *testing.T) {
	assert.Equal(t, "no errors", List{}.Error())
	assert.Equal(t, "TG002: a", List{New(ErrNestedArray, "a")}.Error())
	assert.Contains(t, List{New(ErrNestedArray, "a"), New(ErrNestedArray, "b")}.Error(), "2 compile errors")
}

func TestFormatForTerminal(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	err := New(ErrInvalidEnumMember, `"in-review" is not a valid enum member`).
		At(metadata.GroupModels, "Post").
		WithPath([]string{"Post", "status"}).
		WithSuggestion(SuggestionFor(ErrInvalidEnumMember))

	out := err.FormatForTerminal()
	assert.Contains(t, out, "error[TG007]:")
	assert.Contains(t, out, "--> models.Post.status")
	assert.Contains(t, out, "help: enum members must match")
	assert.Contains(t, out, "invalid enum member")

	summary := FormatListForTerminal(List{err})
	assert.Contains(t, summary, "Compilation failed with 1 error(s)")
	assert.Contains(t, FormatSummary(0), "No errors")
}

func TestFormatListAsJSON(t *testing.T) {
	out, err := FormatListAsJSON(List{New(ErrNestedArray, "a").At(metadata.GroupQueries, "q")})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "error", decoded["status"])
	errs := decoded["errors"].([]interface{})
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "TG002", first["code"])
	assert.Equal(t, "nested array", first["name"])
	assert.Equal(t, "queries", first["group"])

	empty, err := FormatListAsJSON(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, `"status": "success"`)
	assert.Contains(t, empty, `"errors": []`)
}

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "missing return type", CodeName(ErrMissingActionReturn))
	assert.Equal(t, "unknown error", CodeName("TG999"))
	assert.Empty(t, SuggestionFor(ErrUnsupportedShape))
}
