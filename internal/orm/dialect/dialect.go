// Package dialect holds the SQL differences between supported databases.
package dialect

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Dialect renders placeholders, identifiers and column types for one database
type Dialect interface {
	Name() string
	// Placeholder returns the n-th (1-based) bind parameter
	Placeholder(n int) string
	Quote(identifier string) string
	ColumnType(kind metadata.Kind) string
	// PrimaryKey returns the column definition of an auto-increment key
	PrimaryKey(kind metadata.Kind) string
	// Limit renders LIMIT/OFFSET; zero values are omitted
	Limit(take, skip int) string
}

// For returns the dialect of a database/sql driver name
func For(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Placeholders returns count placeholders starting at from
func Placeholders(d Dialect, from, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = d.Placeholder(from + i)
	}
	return out
}

// Postgres is the PostgreSQL dialect, used with lib/pq or pgx
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) Quote(identifier string) string { return pq.QuoteIdentifier(identifier) }

func (Postgres) ColumnType(kind metadata.Kind) string {
	switch kind {
	case metadata.KindNumber:
		return "DOUBLE PRECISION"
	case metadata.KindBoolean:
		return "BOOLEAN"
	case metadata.KindBigInt:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

func (Postgres) PrimaryKey(kind metadata.Kind) string {
	if kind == metadata.KindNumber || kind == metadata.KindBigInt {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "TEXT PRIMARY KEY"
}

func (Postgres) Limit(take, skip int) string {
	var parts []string
	if take > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", take))
	}
	if skip > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", skip))
	}
	return strings.Join(parts, " ")
}

// SQLite is the SQLite dialect, used with mattn/go-sqlite3
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (SQLite) ColumnType(kind metadata.Kind) string {
	switch kind {
	case metadata.KindNumber:
		return "REAL"
	case metadata.KindBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (SQLite) PrimaryKey(kind metadata.Kind) string {
	if kind == metadata.KindNumber || kind == metadata.KindBigInt {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "TEXT PRIMARY KEY"
}

// Limit always emits LIMIT when an offset is set; SQLite has no bare OFFSET
func (SQLite) Limit(take, skip int) string {
	switch {
	case take > 0 && skip > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", take, skip)
	case take > 0:
		return fmt.Sprintf("LIMIT %d", take)
	case skip > 0:
		return fmt.Sprintf("LIMIT -1 OFFSET %d", skip)
	default:
		return ""
	}
}
