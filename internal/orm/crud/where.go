package crud

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	api "github.com/conduit-lang/typegraph/runtime/crud"
)

// whereBuilder renders equality conditions, binding arguments in the order
// their placeholders appear.
type whereBuilder struct {
	registry *schema.Registry
	dialect  dialect.Dialect
	from     int
	args     []any
	aliases  int
}

func (b *whereBuilder) bind(v any) string {
	b.args = append(b.args, bindValue(v))
	return b.dialect.Placeholder(b.from + len(b.args) - 1)
}

// column quotes a column, qualified by table or alias unless qualifier is empty
func (b *whereBuilder) column(qualifier, column string) string {
	if qualifier == "" {
		return b.dialect.Quote(column)
	}
	return b.dialect.Quote(qualifier) + "." + b.dialect.Quote(column)
}

// conditions renders where against e. qualifier prefixes e's columns and
// ref names e's rows inside correlated subqueries.
func (b *whereBuilder) conditions(e *schema.Entity, qualifier, ref string, where map[string]any) ([]string, error) {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	for _, k := range keys {
		v := where[k]
		if rel := e.Relation(k); rel != nil {
			cond, err := b.relation(e, rel, qualifier, ref, v)
			if err != nil {
				return nil, err
			}
			if cond != "" {
				conds = append(conds, cond)
			}
			continue
		}

		col := e.Column(k)
		if col == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, e.Name, k)
		}
		if _, nested := v.(map[string]any); nested {
			return nil, fmt.Errorf("%w: %s.%s is not a relation", api.ErrUnsupportedFilter, e.Name, k)
		}
		if v == nil {
			conds = append(conds, b.column(qualifier, col.Column)+" IS NULL")
			continue
		}
		conds = append(conds, b.column(qualifier, col.Column)+" = "+b.bind(v))
	}
	return conds, nil
}

// relation renders a condition on a related entity. A belongs-to condition
// on the target's primary key alone compares the foreign key; anything else
// requires a matching related row.
func (b *whereBuilder) relation(owner *schema.Entity, rel *schema.Relation, qualifier, ref string, value any) (string, error) {
	if value == nil {
		if rel.Kind != schema.BelongsTo {
			return "", fmt.Errorf("%w: %s.%s cannot be null", api.ErrUnsupportedFilter, owner.Name, rel.Name)
		}
		return b.column(qualifier, rel.ForeignKey) + " IS NULL", nil
	}
	where, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s needs an object condition", api.ErrUnsupportedFilter, owner.Name, rel.Name)
	}
	if len(where) == 0 {
		return "", nil
	}
	if b.registry == nil {
		return "", fmt.Errorf("%w: %s.%s", api.ErrUnsupportedFilter, owner.Name, rel.Name)
	}
	target, ok := b.registry.Get(rel.Target)
	if !ok {
		return "", fmt.Errorf("unknown entity: %s", rel.Target)
	}

	if rel.Kind == schema.BelongsTo {
		pk := target.PrimaryKey()
		if pk == nil {
			return "", fmt.Errorf("entity %s has no primary key", target.Name)
		}
		if v, ok := where[pk.Name]; ok && len(where) == 1 && v != nil {
			return b.column(qualifier, rel.ForeignKey) + " = " + b.bind(v), nil
		}
	}

	b.aliases++
	alias := fmt.Sprintf("t%d", b.aliases)

	var link string
	switch rel.Kind {
	case schema.BelongsTo:
		link = b.column(alias, target.PrimaryKey().Column) + " = " + b.column(ref, rel.ForeignKey)
	default:
		pk := owner.PrimaryKey()
		if pk == nil {
			return "", fmt.Errorf("entity %s has no primary key", owner.Name)
		}
		link = b.column(alias, rel.ForeignKey) + " = " + b.column(ref, pk.Column)
	}

	conds, err := b.conditions(target, alias, alias, where)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
		b.dialect.Quote(target.Table),
		b.dialect.Quote(alias),
		strings.Join(append([]string{link}, conds...), " AND ")), nil
}
