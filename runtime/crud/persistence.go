package crud

import (
	"context"
	"errors"
)

// ErrUnsupportedFilter is returned for a where condition that cannot be
// evaluated, such as a relation condition where only stored columns are known.
var ErrUnsupportedFilter = errors.New("unsupported filter")

// Column is a stored scalar property of an entity.
type Column struct {
	Name string
}

// Relation links an entity to another entity.
type Relation struct {
	Name   string
	Target string
	Many   bool
}

// EntityMetadata describes what the persistence layer stores for a model.
type EntityMetadata struct {
	Name      string
	Columns   []Column
	Relations []Relation
}

// HasColumn reports whether the entity stores a column named name
func (m *EntityMetadata) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Relation returns the relation named name, or nil
func (m *EntityMetadata) Relation(name string) *Relation {
	for i := range m.Relations {
		if m.Relations[i].Name == name {
			return &m.Relations[i]
		}
	}
	return nil
}

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// FindOptions selects entities. Where holds equality conditions by column;
// a map value is a nested condition on a relation.
type FindOptions struct {
	Where map[string]any
	Order []Order
	Skip  int
	Take  int
}

// Repository reads and writes one entity.
type Repository interface {
	FindOne(ctx context.Context, opts FindOptions) (map[string]any, error)
	FindMany(ctx context.Context, opts FindOptions) ([]map[string]any, error)
	Count(ctx context.Context, opts FindOptions) (int, error)
	Save(ctx context.Context, values map[string]any) (map[string]any, error)
	Remove(ctx context.Context, where map[string]any) (bool, error)
}

// EventType is the kind of a persisted change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
)

// Event is emitted by the persistence layer after a change.
type Event struct {
	Model  string
	Type   EventType
	Record map[string]any
}

// Persistence is the storage collaborator the CRUD extension generates
// resolvers against.
type Persistence interface {
	HasMetadata(name string) bool
	Metadata(name string) (*EntityMetadata, error)
	Repository(name string) (Repository, error)
	// LoadRelation resolves relation for every parent at once, one result
	// per parent in order.
	LoadRelation(ctx context.Context, model, relation string, parents []any) ([]any, error)
	OnChange(fn func(Event))
}
