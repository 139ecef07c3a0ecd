package relationships

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func setupTestRegistry(t *testing.T) *schema.Registry {
	reg := schema.NewRegistry()
	id := func() *schema.Column {
		return &schema.Column{Name: "id", Column: "id", Kind: metadata.KindNumber, Primary: true}
	}
	require.NoError(t, reg.Register(&schema.Entity{
		Name:    "User",
		Table:   "users",
		Columns: []*schema.Column{id(), {Name: "name", Column: "name", Kind: metadata.KindString}},
	}))
	require.NoError(t, reg.Register(&schema.Entity{
		Name:    "Post",
		Table:   "posts",
		Columns: []*schema.Column{id(), {Name: "title", Column: "title", Kind: metadata.KindString}},
		Relations: []*schema.Relation{
			{Name: "author", Target: "User", Kind: schema.BelongsTo, ForeignKey: "author_id"},
			{Name: "comments", Target: "Comment", Kind: schema.HasMany, ForeignKey: "post_id"},
		},
	}))
	require.NoError(t, reg.Register(&schema.Entity{
		Name:    "Comment",
		Table:   "comments",
		Columns: []*schema.Column{id(), {Name: "body", Column: "body", Kind: metadata.KindString}},
	}))
	return reg
}

func TestLoader_BelongsTo(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, dialect.Postgres{}, setupTestRegistry(t))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "id" IN ($1, $2)`)).
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(10), "ann").
			AddRow(int64(11), "bob"))

	parents := []any{
		map[string]any{"id": 1, "author_id": int64(10)},
		map[string]any{"id": 2, "author_id": int64(11)},
		map[string]any{"id": 3, "authorId": int64(10)},
		map[string]any{"id": 4},
	}
	out, err := loader.Load(context.Background(), "Post", "author", parents)
	require.NoError(t, err)
	require.Len(t, out, 4)

	ann := map[string]any{"id": int64(10), "name": "ann"}
	assert.Equal(t, ann, out[0])
	assert.Equal(t, map[string]any{"id": int64(11), "name": "bob"}, out[1])
	assert.Equal(t, ann, out[2])
	assert.Nil(t, out[3])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_HasMany(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, dialect.Postgres{}, setupTestRegistry(t))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "comments" WHERE "post_id" IN ($1, $2)`)).
		WithArgs(1.0, 2.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id"}).
			AddRow(int64(100), "first", int64(1)).
			AddRow(int64(101), "second", int64(1)))

	out, err := loader.Load(context.Background(), "Post", "comments", []any{
		map[string]any{"id": 1.0},
		map[string]any{"id": 2.0},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{
		[]any{
			map[string]any{"id": int64(100), "body": "first", "post_id": int64(1)},
			map[string]any{"id": int64(101), "body": "second", "post_id": int64(1)},
		},
		[]any{},
	}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_NoKeys(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, dialect.Postgres{}, setupTestRegistry(t))

	out, err := loader.Load(context.Background(), "Post", "author", []any{map[string]any{}, nil})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil}, out)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query without keys")
}

func TestLoader_Unknown(t *testing.T) {
	db, _ := setupTestDB(t)
	loader := NewLoader(db, dialect.Postgres{}, setupTestRegistry(t))

	_, err := loader.Load(context.Background(), "Post", "editor", nil)
	assert.ErrorIs(t, err, ErrUnknownRelation)

	_, err = loader.Load(context.Background(), "Missing", "author", nil)
	assert.Error(t, err)
}
