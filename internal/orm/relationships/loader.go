// Package relationships loads entity relations for many parents with one
// query per call.
package relationships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/typegraph/internal/orm/crud"
	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// ErrUnknownRelation is returned for a relation the entity does not declare
var ErrUnknownRelation = errors.New("unknown relation")

// Loader resolves relations in batches
type Loader struct {
	db       *sql.DB
	dialect  dialect.Dialect
	registry *schema.Registry
}

// NewLoader creates a new relationship loader
func NewLoader(db *sql.DB, d dialect.Dialect, registry *schema.Registry) *Loader {
	return &Loader{db: db, dialect: d, registry: registry}
}

// Load resolves relation of entity for every parent and returns one result
// per parent, in order: a record or nil for belongs-to, a list for has-many.
func (l *Loader) Load(ctx context.Context, entity, relation string, parents []any) ([]any, error) {
	e, ok := l.registry.Get(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity: %s", entity)
	}
	rel := e.Relation(relation)
	if rel == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, entity, relation)
	}
	target, ok := l.registry.Get(rel.Target)
	if !ok {
		return nil, fmt.Errorf("unknown entity: %s", rel.Target)
	}

	switch rel.Kind {
	case schema.BelongsTo:
		return l.loadBelongsTo(ctx, target, rel, parents)
	default:
		return l.loadHasMany(ctx, e, target, rel, parents)
	}
}

// loadBelongsTo collects the parents' foreign keys and fetches every target
// with one IN query, then maps targets back by key.
func (l *Loader) loadBelongsTo(ctx context.Context, target *schema.Entity, rel *schema.Relation, parents []any) ([]any, error) {
	pk := target.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", target.Name)
	}

	keys := make([]any, len(parents))
	for i, p := range parents {
		keys[i] = foreignKey(p, rel)
	}
	related, err := l.fetch(ctx, target, pk.Column, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load belongs_to %s: %w", rel.Name, err)
	}

	byKey := make(map[string]map[string]any, len(related))
	for _, record := range related {
		byKey[keyString(record[pk.Name])] = record
	}
	out := make([]any, len(parents))
	for i, k := range keys {
		if k == nil {
			continue
		}
		if record, ok := byKey[keyString(k)]; ok {
			out[i] = record
		}
	}
	return out, nil
}

// loadHasMany fetches every child whose foreign key names one of the parents
// and groups them by parent.
func (l *Loader) loadHasMany(ctx context.Context, owner, target *schema.Entity, rel *schema.Relation, parents []any) ([]any, error) {
	pk := owner.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", owner.Name)
	}

	keys := make([]any, len(parents))
	for i, p := range parents {
		keys[i], _ = resolver.Property(p, pk.Name)
	}
	children, err := l.fetch(ctx, target, rel.ForeignKey, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load has_many %s: %w", rel.Name, err)
	}

	fkProp := target.Property(rel.ForeignKey)
	grouped := make(map[string][]any)
	for _, child := range children {
		k := keyString(child[fkProp])
		grouped[k] = append(grouped[k], child)
	}
	out := make([]any, len(parents))
	for i, k := range keys {
		list := []any{}
		if k != nil {
			if g, ok := grouped[keyString(k)]; ok {
				list = g
			}
		}
		out[i] = list
	}
	return out, nil
}

// fetch selects every record of entity whose column is one of keys.
// Duplicate and nil keys are dropped.
func (l *Loader) fetch(ctx context.Context, e *schema.Entity, column string, keys []any) ([]map[string]any, error) {
	seen := make(map[string]bool, len(keys))
	var unique []any
	for _, k := range keys {
		if k == nil || seen[keyString(k)] {
			continue
		}
		seen[keyString(k)] = true
		unique = append(unique, k)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		l.dialect.Quote(e.Table),
		l.dialect.Quote(column),
		strings.Join(dialect.Placeholders(l.dialect, 1, len(unique)), ", "))

	rows, err := l.db.QueryContext(ctx, query, unique...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return crud.ScanRows(rows, e)
}

func foreignKey(parent any, rel *schema.Relation) any {
	if v, ok := resolver.Property(parent, rel.ForeignKey); ok {
		return v
	}
	v, _ := resolver.Property(parent, rel.Name+"Id")
	return v
}

// keyString normalizes numeric keys so 1, int64(1) and 1.0 compare equal
func keyString(v any) string {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
	case float32:
		if x == float32(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
