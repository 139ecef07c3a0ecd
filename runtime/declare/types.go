// Package declare is the input surface of the compiler: an explicit API for
// describing models, inputs, root operations and actions as structural types.
//
// Declarations are plain values. Nothing is resolved until the compiler walks
// them, so a model may refer to another model declared later:
//
//	app := declare.App("blog").
//		Model("Post", declare.Object(
//			declare.Field("id", declare.Number()),
//			declare.Field("categories", declare.Array(declare.Ref("Category"))),
//		)).
//		Model("Category", declare.Object(
//			declare.Field("id", declare.Number()),
//			declare.Field("posts", declare.Array(declare.Ref("Post"))),
//		)).
//		Query("posts", declare.Func(
//			declare.Object(
//				declare.Field("skip", declare.Number()),
//				declare.Field("take", declare.Number()),
//				declare.Field("active", declare.Boolean()).Optional(),
//			),
//			declare.Array(declare.Ref("Post")),
//		))
package declare

import (
	"strconv"
	"strings"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Type is a structural type declaration. The set of implementations is closed.
type Type interface {
	// String renders the declaration in a compact, canonical notation
	String() string
	declared()
}

// PrimitiveType is a number, string, boolean or bigint keyword.
type PrimitiveType struct {
	Kind metadata.Kind
}

// LiteralType is a single literal value of a primitive kind.
type LiteralType struct {
	Kind  metadata.Kind
	Value string
}

// NullType is the null member of a union.
type NullType struct{}

// UndefinedType is the undefined member of a union.
type UndefinedType struct{}

// ObjectType is an object shape with ordered fields.
type ObjectType struct {
	Fields []*FieldDecl
}

// RefType refers to a model or input by name.
type RefType struct {
	Name string
}

// NamedType attaches a stable name to an inline shape.
type NamedType struct {
	Name string
	Type Type
}

// ArrayType is a single-level array.
type ArrayType struct {
	Elem Type
}

// UnionType is a union of its members.
type UnionType struct {
	Members []Type
}

// IntersectionType flattens object members into one object.
type IntersectionType struct {
	Members []Type
}

// ModelArgsType pairs a model with per-property field arguments.
type ModelArgsType struct {
	Model Type
	Args  Type
}

// FuncType is a root operation with arguments.
type FuncType struct {
	Args    Type
	Returns Type
}

func (*PrimitiveType) declared()    {}
func (*LiteralType) declared()      {}
func (*NullType) declared()         {}
func (*UndefinedType) declared()    {}
func (*ObjectType) declared()       {}
func (*RefType) declared()          {}
func (*NamedType) declared()        {}
func (*ArrayType) declared()        {}
func (*UnionType) declared()        {}
func (*IntersectionType) declared() {}
func (*ModelArgsType) declared()    {}
func (*FuncType) declared()         {}

// Number declares a numeric leaf
func Number() Type { return &PrimitiveType{Kind: metadata.KindNumber} }

// String declares a string leaf
func String() Type { return &PrimitiveType{Kind: metadata.KindString} }

// Boolean declares a boolean leaf
func Boolean() Type { return &PrimitiveType{Kind: metadata.KindBoolean} }

// BigInt declares an arbitrary precision integer leaf
func BigInt() Type { return &PrimitiveType{Kind: metadata.KindBigInt} }

// NumberLit declares a numeric literal
func NumberLit(v float64) Type {
	return &LiteralType{Kind: metadata.KindNumber, Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

// StringLit declares a string literal
func StringLit(s string) Type { return &LiteralType{Kind: metadata.KindString, Value: s} }

// BoolLit declares a boolean literal
func BoolLit(b bool) Type { return &LiteralType{Kind: metadata.KindBoolean, Value: strconv.FormatBool(b)} }

// BigIntLit declares a bigint literal given in decimal notation
func BigIntLit(s string) Type { return &LiteralType{Kind: metadata.KindBigInt, Value: s} }

// Null declares the null type
func Null() Type { return &NullType{} }

// Undefined declares the undefined type
func Undefined() Type { return &UndefinedType{} }

// Object declares an object shape
func Object(fields ...*FieldDecl) Type { return &ObjectType{Fields: fields} }

// Ref refers to a model or input declared on the application
func Ref(name string) Type { return &RefType{Name: name} }

// Named gives an inline shape a stable type name
func Named(name string, t Type) Type { return &NamedType{Name: name, Type: t} }

// Array declares an array of t
func Array(t Type) Type { return &ArrayType{Elem: t} }

// Union declares a union of the given members
func Union(members ...Type) Type { return &UnionType{Members: members} }

// Intersection declares the flattening of object members
func Intersection(members ...Type) Type { return &IntersectionType{Members: members} }

// ModelWithArgs attaches arguments to model properties. args must be an
// object whose field names are properties of model.
func ModelWithArgs(model Type, args Type) Type { return &ModelArgsType{Model: model, Args: args} }

// Func declares a root operation taking args and returning returns
func Func(args Type, returns Type) Type { return &FuncType{Args: args, Returns: returns} }

// Enum declares a string-literal union
func Enum(values ...string) Type {
	members := make([]Type, len(values))
	for i, v := range values {
		members[i] = StringLit(v)
	}
	return Union(members...)
}

// Nullable declares t | null
func Nullable(t Type) Type { return Union(t, Null()) }

// Optional declares t | undefined
func Optional(t Type) Type { return Union(t, Undefined()) }

func (t *PrimitiveType) String() string { return t.Kind.String() }

func (t *LiteralType) String() string {
	switch t.Kind {
	case metadata.KindString:
		return strconv.Quote(t.Value)
	case metadata.KindBigInt:
		return t.Value + "n"
	default:
		return t.Value
	}
}

func (*NullType) String() string      { return "null" }
func (*UndefinedType) String() string { return "undefined" }
func (t *RefType) String() string     { return t.Name }

func (t *NamedType) String() string {
	return t.Name + "=" + typeString(t.Type)
}

func (t *ObjectType) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

func (t *ArrayType) String() string {
	elem := typeString(t.Elem)
	switch t.Elem.(type) {
	case *UnionType, *IntersectionType, *FuncType:
		elem = "(" + elem + ")"
	}
	return elem + "[]"
}

func (t *UnionType) String() string        { return joinTypes(t.Members, " | ") }
func (t *IntersectionType) String() string { return joinTypes(t.Members, " & ") }

func (t *ModelArgsType) String() string {
	return "ModelWithArgs<" + typeString(t.Model) + ", " + typeString(t.Args) + ">"
}

func (t *FuncType) String() string {
	return "(args: " + typeString(t.Args) + ") => " + typeString(t.Returns)
}

func joinTypes(members []Type, sep string) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = typeString(m)
	}
	return strings.Join(parts, sep)
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
