package crud

import (
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// OrderDirection is the enum used by generated order inputs
const OrderDirection = "OrderDirection"

type inputKind int

const (
	whereInput inputKind = iota
	orderInput
	saveInput
)

func (k inputKind) description() string {
	switch k {
	case whereInput:
		return "where"
	case orderInput:
		return "order"
	default:
		return "saveInput"
	}
}

func ref(typeName string) *metadata.TypeMetadata {
	return &metadata.TypeMetadata{Kind: metadata.KindReference, TypeName: typeName}
}

// target returns the model a relation property points at
func (x *extender) target(p *metadata.TypeMetadata, rel *Relation) *metadata.TypeMetadata {
	if rel.Target != "" {
		if m := x.app.Model(rel.Target); m != nil {
			return m
		}
	}
	if p.TypeName != "" {
		return x.app.Model(p.TypeName)
	}
	return nil
}

func (x *extender) inputName(kind inputKind, root string, path []string) string {
	switch kind {
	case whereInput:
		return x.naming.WhereInput(root, path...)
	case orderInput:
		return x.naming.OrderInput(root, path...)
	default:
		return x.naming.SaveInput(root, path...)
	}
}

// input declares the where, order or save input of model and returns its
// name. Relations are followed until the path reaches the configured depth.
// An input with no usable property is not declared and "" is returned.
func (x *extender) input(kind inputKind, root string, model *metadata.TypeMetadata, path []string) string {
	name := x.inputName(kind, root, path)
	if x.app.Named(name) != nil {
		return name
	}

	meta, err := x.persistence.Metadata(model.TypeName)
	if err != nil {
		return ""
	}

	md := &metadata.TypeMetadata{
		Kind:         metadata.KindObject,
		TypeName:     name,
		PropertyPath: name,
		Description:  x.naming.Description(kind.description(), model.TypeName),
	}
	for _, p := range model.Properties {
		var prop *metadata.TypeMetadata
		switch {
		case p.Kind.IsPrimitive() || p.Kind == metadata.KindEnum:
			if p.Array || !meta.HasColumn(p.PropertyName) {
				continue
			}
			if kind == orderInput {
				prop = ref(OrderDirection)
			} else {
				prop = p.Clone()
				prop.Nullable = false
			}
		case p.Kind == metadata.KindObject || p.Kind == metadata.KindReference:
			rel := meta.Relation(p.PropertyName)
			if rel == nil || len(path) >= x.depth {
				continue
			}
			related := x.target(p, rel)
			if related == nil {
				continue
			}
			nested := x.input(kind, root, related, append(path[:len(path):len(path)], p.PropertyName))
			if nested == "" {
				continue
			}
			prop = ref(nested)
			prop.Array = kind == saveInput && rel.Many
		default:
			continue
		}
		prop.PropertyName = p.PropertyName
		prop.PropertyPath = metadata.JoinPath(name, p.PropertyName)
		prop.Description = p.Description
		prop.Args = nil
		prop.CanBeUndefined = true
		md.Properties = append(md.Properties, prop)
	}
	if len(md.Properties) == 0 {
		return ""
	}

	x.app.Append(metadata.GroupInputs, md)
	x.report.Inputs = append(x.report.Inputs, name)
	return name
}

// orderDirection declares the shared ASC/DESC enum once
func (x *extender) orderDirection() {
	if x.app.Named(OrderDirection) != nil {
		return
	}
	x.app.Append(metadata.GroupInputs, &metadata.TypeMetadata{
		Kind:         metadata.KindEnum,
		TypeName:     OrderDirection,
		PropertyPath: OrderDirection,
		Description:  "Sort direction.",
		Properties: []*metadata.TypeMetadata{
			{Kind: metadata.KindString, PropertyName: "ASC"},
			{Kind: metadata.KindString, PropertyName: "DESC"},
		},
	})
	x.report.Inputs = append(x.report.Inputs, OrderDirection)
}
