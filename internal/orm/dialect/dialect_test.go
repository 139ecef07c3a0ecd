package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

func TestFor(t *testing.T) {
	for driver, name := range map[string]string{
		"postgres": "postgres",
		"pgx":      "postgres",
		"sqlite3":  "sqlite3",
		"sqlite":   "sqlite3",
	} {
		d, err := For(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, name, d.Name())
	}

	_, err := For("mysql")
	assert.Error(t, err)
}

func TestPostgres(t *testing.T) {
	d := Postgres{}
	assert.Equal(t, []string{"$2", "$3", "$4"}, Placeholders(d, 2, 3))
	assert.Equal(t, `"user"`, d.Quote("user"))
	assert.Equal(t, "DOUBLE PRECISION", d.ColumnType(metadata.KindNumber))
	assert.Equal(t, "NUMERIC", d.ColumnType(metadata.KindBigInt))
	assert.Equal(t, "TEXT", d.ColumnType(metadata.KindEnum))
	assert.Equal(t, "BIGSERIAL PRIMARY KEY", d.PrimaryKey(metadata.KindNumber))
	assert.Equal(t, "TEXT PRIMARY KEY", d.PrimaryKey(metadata.KindString))
	assert.Equal(t, "LIMIT 10 OFFSET 5", d.Limit(10, 5))
	assert.Equal(t, "OFFSET 5", d.Limit(0, 5))
	assert.Empty(t, d.Limit(0, 0))
}

func TestSQLite(t *testing.T) {
	d := SQLite{}
	assert.Equal(t, []string{"?", "?"}, Placeholders(d, 1, 2))
	assert.Equal(t, `"a""b"`, d.Quote(`a"b`))
	assert.Equal(t, "REAL", d.ColumnType(metadata.KindNumber))
	assert.Equal(t, "BOOLEAN", d.ColumnType(metadata.KindBoolean))
	assert.Equal(t, "INTEGER PRIMARY KEY AUTOINCREMENT", d.PrimaryKey(metadata.KindNumber))
	assert.Equal(t, "LIMIT -1 OFFSET 5", d.Limit(0, 5))
	assert.Equal(t, "LIMIT 3", d.Limit(3, 0))
}
