// Package migrate applies generated schema migrations and records them in a
// schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conduit-lang/typegraph/internal/orm/dialect"
)

// Migration is one named schema change
type Migration struct {
	Name      string   // unique, also the ordering key within a run
	Up        []string // statements to apply
	Down      []string // statements to roll back
	AppliedAt time.Time
}

// Tracker manages migration history in the database
type Tracker struct {
	db      *sql.DB
	dialect dialect.Dialect
}

// NewTracker creates a new migration tracker
func NewTracker(db *sql.DB, d dialect.Dialect) *Tracker {
	return &Tracker{db: db, dialect: d}
}

// Initialize ensures the schema_migrations table exists
func (t *Tracker) Initialize(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// Applied returns the names of applied migrations
func (t *Tracker) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}
	return applied, nil
}

// Pending returns the migrations of all that have not been applied, in order
func (t *Tracker) Pending(ctx context.Context, all []*Migration) ([]*Migration, error) {
	applied, err := t.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*Migration
	for _, m := range all {
		if !applied[m.Name] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Record marks a migration as applied in a transaction
func (t *Tracker) Record(ctx context.Context, tx *sql.Tx, m *Migration) error {
	query := "INSERT INTO schema_migrations (name) VALUES (" + t.dialect.Placeholder(1) + ")"
	if _, err := tx.ExecContext(ctx, query, m.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// Remove removes a migration record in a transaction
func (t *Tracker) Remove(ctx context.Context, tx *sql.Tx, name string) error {
	query := "DELETE FROM schema_migrations WHERE name = " + t.dialect.Placeholder(1)
	result, err := tx.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("migration %s not found", name)
	}
	return nil
}
