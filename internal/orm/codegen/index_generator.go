package codegen

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/typegraph/internal/orm/schema"
)

// GenerateForeignKeyIndexes generates indexes on the key columns of an entity
func (g *DDLGenerator) GenerateForeignKeyIndexes(e *schema.Entity) []string {
	var indexes []string
	for _, fk := range g.ForeignKeys(e) {
		indexName := fmt.Sprintf("idx_%s_%s", e.Table, fk.Column)
		indexes = append(indexes,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
				g.dialect.Quote(indexName), g.dialect.Quote(e.Table), g.dialect.Quote(fk.Column)))
	}

	// Sort for deterministic output
	sort.Strings(indexes)

	return indexes
}
