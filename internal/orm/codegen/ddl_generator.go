// Package codegen provides DDL generation for entity schemas
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// ForeignKey is a key column a table carries for a relation
type ForeignKey struct {
	Column string
	Target string // referenced entity
}

// DDLGenerator generates CREATE TABLE statements for a dialect
type DDLGenerator struct {
	dialect  dialect.Dialect
	registry *schema.Registry
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(d dialect.Dialect, registry *schema.Registry) *DDLGenerator {
	return &DDLGenerator{dialect: d, registry: registry}
}

// Entities returns the registered entities, sorted by name
func (g *DDLGenerator) Entities() []*schema.Entity {
	return g.registry.All()
}

// ForeignKeys returns the key columns stored on the entity's table: its own
// belongs-to keys plus the keys of has-many relations pointing at it.
func (g *DDLGenerator) ForeignKeys(e *schema.Entity) []ForeignKey {
	seen := make(map[string]bool)
	var out []ForeignKey
	add := func(column, target string) {
		if seen[column] || e.Column(column) != nil {
			return
		}
		seen[column] = true
		out = append(out, ForeignKey{Column: column, Target: target})
	}

	for _, rel := range e.Relations {
		if rel.Kind == schema.BelongsTo {
			add(rel.ForeignKey, rel.Target)
		}
	}
	for _, other := range g.registry.All() {
		for _, rel := range other.Relations {
			if rel.Kind == schema.HasMany && rel.Target == e.Name {
				add(rel.ForeignKey, other.Name)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

// GenerateCreateTable generates a CREATE TABLE statement for an entity
func (g *DDLGenerator) GenerateCreateTable(e *schema.Entity) (string, error) {
	if e == nil {
		return "", fmt.Errorf("entity cannot be nil")
	}

	defs := make([]string, 0, len(e.Columns))
	for _, c := range orderColumns(e.Columns) {
		defs = append(defs, g.columnDefinition(c))
	}
	for _, fk := range g.ForeignKeys(e) {
		defs = append(defs, fmt.Sprintf("%s %s", g.dialect.Quote(fk.Column), g.keyType(fk.Target)))
	}
	if len(defs) == 0 {
		return "", fmt.Errorf("entity %s has no columns", e.Name)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", g.dialect.Quote(e.Table)))
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String(), nil
}

// GenerateSchema generates tables and foreign key indexes for every entity
func (g *DDLGenerator) GenerateSchema() ([]string, error) {
	var stmts []string
	for _, e := range g.registry.All() {
		table, err := g.GenerateCreateTable(e)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, table)
		stmts = append(stmts, g.GenerateForeignKeyIndexes(e)...)
	}
	return stmts, nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(e *schema.Entity) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.dialect.Quote(e.Table))
}

func (g *DDLGenerator) columnDefinition(c *schema.Column) string {
	name := g.dialect.Quote(c.Column)
	if c.Primary {
		return name + " " + g.dialect.PrimaryKey(c.Kind)
	}
	def := name + " " + g.dialect.ColumnType(c.Kind)
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def
}

// keyType is the column type of a key referencing target
func (g *DDLGenerator) keyType(target string) string {
	if e, ok := g.registry.Get(target); ok {
		if pk := e.PrimaryKey(); pk != nil {
			if pk.Kind == metadata.KindNumber || pk.Kind == metadata.KindBigInt {
				return "BIGINT"
			}
			return g.dialect.ColumnType(pk.Kind)
		}
	}
	return "BIGINT"
}

// orderColumns puts the primary key first and keeps declaration order otherwise
func orderColumns(columns []*schema.Column) []*schema.Column {
	out := append([]*schema.Column(nil), columns...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Primary && !out[j].Primary
	})
	return out
}
