package compiler

import (
	"github.com/conduit-lang/typegraph/compiler/errors"
	"github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// union collapses a union declaration:
//
//   - null and undefined members become the Nullable and CanBeUndefined flags
//   - literals of one kind collapse to number, bigint, boolean or a string enum
//   - a single remaining member is returned as is, with the flags merged
//   - several named models become a union node
func (w *walker) union(members []declare.Type, f frame) (*metadata.TypeMetadata, error) {
	var (
		rest      []declare.Type
		literals  []*declare.LiteralType
		nullable  bool
		undefined bool
	)
	for _, m := range flattenUnion(members) {
		switch v := m.(type) {
		case *declare.NullType:
			nullable = true
		case *declare.UndefinedType:
			undefined = true
		case *declare.LiteralType:
			literals = append(literals, v)
		default:
			rest = append(rest, m)
		}
	}

	var (
		md  *metadata.TypeMetadata
		err error
	)
	switch {
	case len(literals) > 0 && len(rest) > 0:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "literals cannot be mixed with other types in a union")
	case len(literals) > 0:
		md, err = w.literals(literals, f)
	case len(rest) == 0:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "union has no member besides null and undefined")
	case len(rest) == 1:
		md, err = w.compile(rest[0], f)
	default:
		md, err = w.objectUnion(rest, f)
	}
	if err != nil {
		return nil, err
	}

	md.Nullable = md.Nullable || nullable
	md.CanBeUndefined = md.CanBeUndefined || undefined
	return md, nil
}

func flattenUnion(members []declare.Type) []declare.Type {
	var out []declare.Type
	for _, m := range members {
		if u, ok := m.(*declare.UnionType); ok {
			out = append(out, flattenUnion(u.Members)...)
			continue
		}
		out = append(out, m)
	}
	return out
}

func (w *walker) literals(literals []*declare.LiteralType, f frame) (*metadata.TypeMetadata, error) {
	kind := literals[0].Kind
	for _, l := range literals[1:] {
		if l.Kind != kind {
			return nil, w.fail(errors.ErrMixedLiteralUnion, f, "union mixes %s and %s literals", kind, l.Kind)
		}
	}
	if kind != metadata.KindString {
		return w.node(kind, f), nil
	}

	md := w.node(metadata.KindEnum, f)
	seen := make(map[string]bool, len(literals))
	for _, l := range literals {
		if !metadata.IsIdentifier(l.Value) {
			return nil, w.fail(errors.ErrInvalidEnumMember, f, "%q is not a valid enum member", l.Value)
		}
		if seen[l.Value] {
			continue
		}
		seen[l.Value] = true
		md.Properties = append(md.Properties, &metadata.TypeMetadata{
			Kind:         metadata.KindString,
			PropertyName: l.Value,
		})
	}
	md.TypeName = w.compiler.naming.EnumTypeName(md)
	return md, nil
}

// objectUnion builds a union whose members are all registered models
func (w *walker) objectUnion(members []declare.Type, f frame) (*metadata.TypeMetadata, error) {
	md := w.node(metadata.KindUnion, f)
	for _, m := range members {
		var (
			name   string
			inline declare.Type
		)
		switch v := m.(type) {
		case *declare.RefType:
			name = v.Name
		case *declare.NamedType:
			name, inline = v.Name, v.Type
		default:
			return nil, w.fail(errors.ErrInvalidUnionMember, f, "union member %s is not a named model", m)
		}
		if w.names[name] != metadata.GroupModels {
			return nil, w.fail(errors.ErrInvalidUnionMember, f, "union member %s is not a declared model", name)
		}
		if !metadata.IsIdentifier(name) {
			return nil, w.fail(errors.ErrInvalidUnionMember, f, "union member %q is not a valid identifier", name)
		}

		member, err := w.named(name, inline, f.child(name))
		if err != nil {
			return nil, err
		}
		if member.Array || (member.Kind != metadata.KindObject && member.Kind != metadata.KindReference) {
			return nil, w.fail(errors.ErrInvalidUnionMember, f, "union member %s is not an object", name)
		}
		md.Properties = append(md.Properties, member)
	}
	md.TypeName = w.compiler.naming.UnionTypeName(md)
	return md, nil
}
