package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/graphql-go/graphql"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// wrap applies list and non-null wrappers. Array elements are never null.
func wrap(md *metadata.TypeMetadata, t graphql.Type) graphql.Type {
	if md.Array {
		t = graphql.NewList(graphql.NewNonNull(t))
	}
	if !md.Optional() {
		t = graphql.NewNonNull(t)
	}
	return t
}

func (b *Builder) output(md *metadata.TypeMetadata) graphql.Output {
	return wrap(md, b.outputBase(md))
}

func (b *Builder) input(md *metadata.TypeMetadata) graphql.Input {
	return wrap(md, b.inputBase(md))
}

func scalar(kind metadata.Kind) graphql.Type {
	switch kind {
	case metadata.KindNumber:
		return graphql.Float
	case metadata.KindString:
		return graphql.String
	case metadata.KindBoolean:
		return graphql.Boolean
	case metadata.KindBigInt:
		return BigInt
	default:
		return nil
	}
}

// canonical returns the declared entry a named node stands for. Nodes with
// no declared entry describe themselves.
func (b *Builder) canonical(md *metadata.TypeMetadata) (*metadata.TypeMetadata, error) {
	if md.TypeName == "" {
		return md, nil
	}
	if named := b.app.Named(md.TypeName); named != nil {
		return named, nil
	}
	if md.IsReference() {
		return nil, fmt.Errorf("%s: reference to unknown type %s", md.PropertyPath, md.TypeName)
	}
	return md, nil
}

func (b *Builder) outputBase(md *metadata.TypeMetadata) graphql.Type {
	if s := scalar(md.Kind); s != nil {
		return s
	}

	src, err := b.canonical(md)
	if err != nil {
		b.errs = append(b.errs, err)
		return graphql.String
	}
	if s := scalar(src.Kind); s != nil {
		return s
	}

	switch src.Kind {
	case metadata.KindObject:
		return b.object(src)
	case metadata.KindEnum:
		return b.enum(src)
	case metadata.KindUnion:
		return b.union(src)
	default:
		b.errorf("%s: kind %s has no output type", md.PropertyPath, src.Kind)
		return graphql.String
	}
}

func (b *Builder) inputBase(md *metadata.TypeMetadata) graphql.Type {
	if s := scalar(md.Kind); s != nil {
		return s
	}

	src, err := b.canonical(md)
	if err != nil {
		b.errs = append(b.errs, err)
		return graphql.String
	}
	if s := scalar(src.Kind); s != nil {
		return s
	}

	switch src.Kind {
	case metadata.KindObject:
		return b.inputObject(src)
	case metadata.KindEnum:
		return b.enum(src)
	default:
		b.errorf("%s: kind %s cannot be used as an input", md.PropertyPath, src.Kind)
		return graphql.String
	}
}

// claim reserves a type name for a shape. The same shape always gets the
// same name; a different shape asking for a taken name gets a numeric suffix.
func (b *Builder) claim(base, sig string) string {
	if name, ok := b.bySig[sig]; ok {
		return name
	}
	name := base
	for i := 2; ; i++ {
		if _, taken := b.names[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
	b.names[name] = sig
	b.bySig[sig] = name
	return name
}

// signature identifies a type shape independent of where it occurs.
func signature(prefix string, md *metadata.TypeMetadata) string {
	if md.TypeName != "" {
		return prefix + ":" + md.TypeName
	}
	shape := md.Clone()
	shape.PropertyName = ""
	shape.PropertyPath = ""
	shape.Nullable = false
	shape.CanBeUndefined = false
	shape.Array = false
	shape.Args = nil
	shape.Description = ""
	shape.Deprecated = ""
	data, err := json.Marshal(shape)
	if err != nil {
		return prefix + "~" + md.PropertyPath
	}
	return prefix + "~" + string(data)
}

func (b *Builder) object(md *metadata.TypeMetadata) *graphql.Object {
	base := md.TypeName
	if base == "" {
		base = b.naming.FallbackTypeName(md, false)
	}
	name := b.claim(base, signature("object", md))
	if o, ok := b.objects[name]; ok {
		return o
	}

	src := md
	o := graphql.NewObject(graphql.ObjectConfig{
		Name:        name,
		Description: md.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.objectFields(name, src)
		}),
	})
	b.objects[name] = o
	return o
}

func (b *Builder) objectFields(typeName string, md *metadata.TypeMetadata) graphql.Fields {
	fields := graphql.Fields{}
	for _, p := range md.Properties {
		field := &graphql.Field{
			Type:              b.output(p),
			Args:              b.args(p),
			Description:       p.Description,
			DeprecationReason: p.Deprecated,
			Resolve:           b.fieldResolver(typeName, p),
		}
		fields[p.PropertyName] = field
	}
	return fields
}

func (b *Builder) inputObject(md *metadata.TypeMetadata) *graphql.InputObject {
	base := md.TypeName
	switch {
	case base == "":
		base = b.naming.FallbackTypeName(md, true)
	case b.app.Model(base) != nil:
		base += "Input"
	}
	name := b.claim(base, signature("input", md))
	if in, ok := b.inputs[name]; ok {
		return in
	}

	src := md
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: md.Description,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, p := range src.Properties {
				fields[p.PropertyName] = &graphql.InputObjectFieldConfig{
					Type:        b.input(p),
					Description: p.Description,
				}
			}
			return fields
		}),
	})
	b.inputs[name] = in
	return in
}

func (b *Builder) enum(md *metadata.TypeMetadata) *graphql.Enum {
	base := md.TypeName
	if base == "" {
		base = b.naming.EnumTypeName(md)
	}
	name := b.claim(base, signature("enum", md))
	if e, ok := b.enums[name]; ok {
		return e
	}

	values := graphql.EnumValueConfigMap{}
	for _, member := range md.Properties {
		values[member.PropertyName] = &graphql.EnumValueConfig{
			Value:             member.PropertyName,
			Description:       member.Description,
			DeprecationReason: member.Deprecated,
		}
	}
	e := graphql.NewEnum(graphql.EnumConfig{
		Name:        name,
		Description: md.Description,
		Values:      values,
	})
	b.enums[name] = e
	return e
}

type unionMember struct {
	object *graphql.Object
	props  map[string]bool
}

func (b *Builder) union(md *metadata.TypeMetadata) *graphql.Union {
	base := md.TypeName
	if base == "" {
		base = b.naming.UnionTypeName(md)
	}
	name := b.claim(base, signature("union", md))
	if u, ok := b.unions[name]; ok {
		return u
	}

	var members []unionMember
	for _, m := range md.Properties {
		src, err := b.canonical(m)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		if src.Kind != metadata.KindObject {
			b.errorf("%s: union member %s is not an object", md.PropertyPath, m.TypeName)
			continue
		}
		props := make(map[string]bool, len(src.Properties))
		for _, p := range src.Properties {
			props[p.PropertyName] = true
		}
		members = append(members, unionMember{object: b.object(src), props: props})
	}

	types := make([]*graphql.Object, len(members))
	for i, m := range members {
		types[i] = m.object
	}
	u := graphql.NewUnion(graphql.UnionConfig{
		Name:        name,
		Description: md.Description,
		Types:       types,
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			return resolveMember(members, p.Value)
		},
	})
	b.unions[name] = u
	return u
}

// resolveMember picks the union member for a value: the __typename key of a
// map, else the first member declaring every key, else a struct type name.
func resolveMember(members []unionMember, value any) *graphql.Object {
	if m, ok := value.(map[string]any); ok {
		if tn, ok := m["__typename"].(string); ok {
			for _, member := range members {
				if member.object.Name() == tn {
					return member.object
				}
			}
		}
	next:
		for _, member := range members {
			for key := range m {
				if key != "__typename" && !member.props[key] {
					continue next
				}
			}
			return member.object
		}
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.IsValid() {
		for _, member := range members {
			if member.object.Name() == rv.Type().Name() {
				return member.object
			}
		}
	}
	return nil
}

// args builds the GraphQL arguments of a field. A single object-shaped Args
// node is splatted into one argument per property.
func (b *Builder) args(md *metadata.TypeMetadata) graphql.FieldConfigArgument {
	if len(md.Args) == 0 {
		return nil
	}

	out := graphql.FieldConfigArgument{}
	if len(md.Args) == 1 && !md.Args[0].Array {
		if src, err := b.canonical(md.Args[0]); err == nil && src.Kind == metadata.KindObject {
			for _, p := range src.Properties {
				out[p.PropertyName] = &graphql.ArgumentConfig{
					Type:        b.input(p),
					Description: p.Description,
				}
			}
			return out
		}
	}

	for _, a := range md.Args {
		out[a.PropertyName] = &graphql.ArgumentConfig{
			Type:        b.input(a),
			Description: a.Description,
		}
	}
	return out
}
