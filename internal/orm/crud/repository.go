// Package crud implements entity reads and writes over database/sql.
package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/hooks"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	api "github.com/conduit-lang/typegraph/runtime/crud"
)

// Repository provides CRUD operations for one entity
type Repository struct {
	entity   *schema.Entity
	registry *schema.Registry
	db       *sql.DB
	dialect  dialect.Dialect
	hooks    *hooks.Executor
}

var _ api.Repository = (*Repository)(nil)

// NewRepository creates a repository. registry resolves the targets of
// relation conditions; without one they are rejected. hooks may be nil.
func NewRepository(entity *schema.Entity, registry *schema.Registry, db *sql.DB, d dialect.Dialect, h *hooks.Executor) *Repository {
	return &Repository{entity: entity, registry: registry, db: db, dialect: d, hooks: h}
}

func (r *Repository) table() string {
	return r.dialect.Quote(r.entity.Table)
}

// whereClause renders the conditions of where with placeholders numbered
// from from. A relation condition becomes a foreign key comparison or an
// EXISTS subquery on the related table.
func (r *Repository) whereClause(where map[string]any, from int) (string, []any, error) {
	b := &whereBuilder{registry: r.registry, dialect: r.dialect, from: from}
	conds, err := b.conditions(r.entity, "", r.entity.Table, where)
	if err != nil {
		return "", nil, err
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), b.args, nil
}

func (r *Repository) orderClause(order []api.Order) (string, error) {
	var parts []string
	for _, o := range order {
		if strings.Contains(o.Field, ".") {
			continue
		}
		col := r.entity.Column(o.Field)
		if col == nil {
			return "", fmt.Errorf("%w: %s.%s", ErrFieldNotFound, r.entity.Name, o.Field)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, r.dialect.Quote(col.Column)+" "+dir)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// FindMany returns every record matching opts
func (r *Repository) FindMany(ctx context.Context, opts api.FindOptions) ([]map[string]any, error) {
	where, args, err := r.whereClause(opts.Where, 1)
	if err != nil {
		return nil, err
	}
	order, err := r.orderClause(opts.Order)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + r.table() + where + order
	if limit := r.dialect.Limit(opts.Take, opts.Skip); limit != "" {
		query += " " + limit
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.entity.Name, ConvertDBError(err))
	}
	defer rows.Close()

	return ScanRows(rows, r.entity)
}

// FindOne returns the first matching record, or nil when none matches
func (r *Repository) FindOne(ctx context.Context, opts api.FindOptions) (map[string]any, error) {
	opts.Take = 1
	records, err := r.FindMany(ctx, opts)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Count returns the number of matching records
func (r *Repository) Count(ctx context.Context, opts api.FindOptions) (int, error) {
	where, args, err := r.whereClause(opts.Where, 1)
	if err != nil {
		return 0, err
	}

	var n int
	query := "SELECT COUNT(*) FROM " + r.table() + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.entity.Name, ConvertDBError(err))
	}
	return n, nil
}

// Save updates the record whose primary key is set in values, or inserts a
// new one when there is no such record.
func (r *Repository) Save(ctx context.Context, values map[string]any) (map[string]any, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	hookType := hooks.AfterInsert
	var record map[string]any
	if pk := r.entity.PrimaryKey(); pk != nil && values[pk.Name] != nil {
		record, err = r.update(ctx, tx, pk, values)
		switch {
		case err == nil:
			hookType = hooks.AfterUpdate
		case errors.Is(err, sql.ErrNoRows):
			record, err = nil, nil
		default:
			return nil, fmt.Errorf("failed to update record: %w", ConvertDBError(err))
		}
	}
	if record == nil {
		record, err = r.insert(ctx, tx, values)
		if err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	if err := r.runHooks(ctx, hookType, record); err != nil {
		return nil, err
	}
	return record, nil
}

// columnValues returns the stored columns present in values. A belongs-to
// key is taken from its SQL name or from the "id" of a nested object.
func (r *Repository) columnValues(values map[string]any, skipPrimary bool) ([]string, []any) {
	var (
		cols []string
		args []any
	)
	for _, c := range r.entity.Columns {
		if skipPrimary && c.Primary {
			continue
		}
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, c.Column)
		args = append(args, bindValue(v))
	}
	for _, rel := range r.entity.Relations {
		if rel.Kind != schema.BelongsTo {
			continue
		}
		if v, ok := values[rel.ForeignKey]; ok {
			cols = append(cols, rel.ForeignKey)
			args = append(args, bindValue(v))
		} else if nested, ok := values[rel.Name].(map[string]any); ok && nested["id"] != nil {
			cols = append(cols, rel.ForeignKey)
			args = append(args, bindValue(nested["id"]))
		}
	}
	return cols, args
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, values map[string]any) (map[string]any, error) {
	cols, args := r.columnValues(values, false)

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", r.table())
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = r.dialect.Quote(c)
		}
		query = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			r.table(),
			strings.Join(quoted, ", "),
			strings.Join(dialect.Placeholders(r.dialect, 1, len(cols)), ", "),
		)
	}
	return r.queryOne(ctx, tx, query, args)
}

func (r *Repository) update(ctx context.Context, tx *sql.Tx, pk *schema.Column, values map[string]any) (map[string]any, error) {
	cols, args := r.columnValues(values, true)
	args = append(args, bindValue(values[pk.Name]))
	key := fmt.Sprintf("%s = %s", r.dialect.Quote(pk.Column), r.dialect.Placeholder(len(args)))

	if len(cols) == 0 {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s", r.table(), key)
		return r.queryOne(ctx, tx, query, args)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", r.dialect.Quote(c), r.dialect.Placeholder(i+1))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *", r.table(), strings.Join(sets, ", "), key)
	return r.queryOne(ctx, tx, query, args)
}

func (r *Repository) queryOne(ctx context.Context, tx *sql.Tx, query string, args []any) (map[string]any, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := ScanRows(rows, r.entity)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

// Remove deletes every record matching where and reports whether any was
// removed. An empty where is rejected.
func (r *Repository) Remove(ctx context.Context, where map[string]any) (bool, error) {
	clause, args, err := r.whereClause(where, 1)
	if err != nil {
		return false, err
	}
	if clause == "" {
		return false, ErrUnconditionalRemove
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var removed []map[string]any
	if r.hooks != nil && r.hooks.HasHooks(hooks.AfterRemove) {
		rows, err := tx.QueryContext(ctx, "SELECT * FROM "+r.table()+clause, args...)
		if err != nil {
			return false, fmt.Errorf("failed to load records: %w", ConvertDBError(err))
		}
		removed, err = ScanRows(rows, r.entity)
		rows.Close()
		if err != nil {
			return false, err
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM "+r.table()+clause, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete: %w", ConvertDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, record := range removed {
		if err := r.runHooks(ctx, hooks.AfterRemove, record); err != nil {
			return true, err
		}
	}
	return affected > 0, nil
}

func (r *Repository) runHooks(ctx context.Context, hookType hooks.HookType, record map[string]any) error {
	if r.hooks == nil {
		return nil
	}
	return r.hooks.Execute(ctx, hookType, r.entity.Name, record)
}

// bindValue converts argument values database/sql cannot bind directly
func bindValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	default:
		return v
	}
}
