// Package schema describes how IR models map onto database tables.
package schema

import (
	"strings"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// RelationKind is the cardinality of a relation
type RelationKind int

const (
	// BelongsTo stores the foreign key on the owning table
	BelongsTo RelationKind = iota
	// HasMany stores the foreign key on the target table
	HasMany
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasMany:
		return "has_many"
	default:
		return "unknown"
	}
}

// Column maps one model property to a table column.
type Column struct {
	Name     string        // Property name
	Column   string        // SQL column name
	Kind     metadata.Kind // IR kind of the property
	Nullable bool
	Primary  bool
}

// Relation maps an object property to another entity.
type Relation struct {
	Name       string // Property name
	Target     string // Target entity name
	Kind       RelationKind
	ForeignKey string // SQL column holding the key
}

// Entity is the table mapping of one model.
type Entity struct {
	Name      string
	Table     string
	Columns   []*Column
	Relations []*Relation
}

// Column returns the column for a property, or nil
func (e *Entity) Column(name string) *Column {
	for _, c := range e.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Relation returns the relation for a property, or nil
func (e *Entity) Relation(name string) *Relation {
	for _, r := range e.Relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// PrimaryKey returns the primary key column, or nil
func (e *Entity) PrimaryKey() *Column {
	for _, c := range e.Columns {
		if c.Primary {
			return c
		}
	}
	return nil
}

// Property maps a SQL column back to its property name. Unknown columns,
// such as foreign keys, keep their SQL name.
func (e *Entity) Property(column string) string {
	for _, c := range e.Columns {
		if c.Column == column {
			return c.Name
		}
	}
	return column
}

// ToTableName converts an entity name to a table name (snake_case plural)
func ToTableName(name string) string {
	return pluralize(ToSnakeCase(name))
}

// ToSnakeCase converts a string to snake_case
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

func pluralize(s string) string {
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}
