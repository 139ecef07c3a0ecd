package schema

import (
	"fmt"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// FromMetadata derives one entity per IR model. Primitive and enum
// properties become columns, a property named "id" is the primary key, and
// object properties naming another model become relations. A single object
// belongs to its target through "<field>_id". A list is owned by the target
// through the key of the target's own belongs-to property pointing back, or
// "<model>_id" when there is none.
func FromMetadata(app *metadata.Application) (*Registry, error) {
	r := NewRegistry()
	for _, m := range app.Models {
		e, err := entityFor(app, m)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func entityFor(app *metadata.Application, m *metadata.TypeMetadata) (*Entity, error) {
	if m.Kind != metadata.KindObject || m.Array {
		return nil, nil
	}
	if m.TypeName == "" {
		return nil, fmt.Errorf("model at %s has no type name", m.PropertyPath)
	}

	e := &Entity{Name: m.TypeName, Table: ToTableName(m.TypeName)}
	for _, p := range m.Properties {
		switch {
		case p.Kind.IsPrimitive() || p.Kind == metadata.KindEnum:
			if p.Array {
				continue
			}
			e.Columns = append(e.Columns, &Column{
				Name:     p.PropertyName,
				Column:   ToSnakeCase(p.PropertyName),
				Kind:     p.Kind,
				Nullable: p.Optional(),
				Primary:  p.PropertyName == "id",
			})
		case p.Kind == metadata.KindObject || p.Kind == metadata.KindReference:
			if p.TypeName == "" || app.Model(p.TypeName) == nil {
				continue
			}
			rel := &Relation{Name: p.PropertyName, Target: p.TypeName}
			if p.Array {
				rel.Kind = HasMany
				rel.ForeignKey = inverseKey(app.Model(p.TypeName), m.TypeName)
			} else {
				rel.Kind = BelongsTo
				rel.ForeignKey = ToSnakeCase(p.PropertyName) + "_id"
			}
			e.Relations = append(e.Relations, rel)
		}
	}
	return e, nil
}

func inverseKey(target *metadata.TypeMetadata, owner string) string {
	for _, p := range target.Properties {
		if !p.Array && p.TypeName == owner && (p.Kind == metadata.KindObject || p.Kind == metadata.KindReference) {
			return ToSnakeCase(p.PropertyName) + "_id"
		}
	}
	return ToSnakeCase(owner) + "_id"
}
