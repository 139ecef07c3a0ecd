package compiler

import (
	"strings"

	"github.com/conduit-lang/typegraph/compiler/errors"
	"github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// walker compiles one declaration.
type walker struct {
	compiler *Compiler
	names    map[string]metadata.Group
	decls    map[string]*declare.Declaration
	group    metadata.Group
	decl     string
}

// frame is the position of the walk inside the declaration.
type frame struct {
	path   []string // property path segments from the declaration root
	stack  []string // named types being expanded on the current path
	inArgs bool
}

func (f frame) child(name string) frame {
	f.path = append(f.path[:len(f.path):len(f.path)], name)
	return f
}

func (f frame) enter(typeName string) frame {
	f.stack = append(f.stack[:len(f.stack):len(f.stack)], typeName)
	return f
}

func (f frame) args() frame {
	f.inArgs = true
	return f
}

func (f frame) expanding(typeName string) bool {
	for _, n := range f.stack {
		if n == typeName {
			return true
		}
	}
	return false
}

func (w *walker) fail(code string, f frame, format string, args ...interface{}) *errors.CompileError {
	return errors.Newf(code, format, args...).At(w.group, w.decl).WithPath(f.path)
}

func (w *walker) node(kind metadata.Kind, f frame) *metadata.TypeMetadata {
	md := &metadata.TypeMetadata{Kind: kind, PropertyPath: strings.Join(f.path, ".")}
	if len(f.path) > 0 {
		md.PropertyName = f.path[len(f.path)-1]
	}
	return md
}

// root compiles a model, input, query, mutation or subscription declaration
func (w *walker) root(d *declare.Declaration) (*metadata.TypeMetadata, error) {
	f := frame{path: []string{d.Name}}

	switch w.group {
	case metadata.GroupModels, metadata.GroupInputs:
		f = f.enter(d.Name)
		md, err := w.compile(d.Type, f)
		if err != nil {
			return nil, err
		}
		md.TypeName = d.Name
		if d.Description != "" {
			md.Description = d.Description
		}
		return md, nil
	}

	returns, argsType := d.Type, declare.Type(nil)
	if fn, ok := d.Type.(*declare.FuncType); ok {
		returns, argsType = fn.Returns, fn.Args
	}
	if returns == nil {
		return nil, w.fail(errors.ErrUnsupportedShape, f, "%s declares no result type", d.Name)
	}

	md, err := w.compile(returns, f)
	if err != nil {
		return nil, err
	}
	if argsType != nil {
		args, err := w.compile(argsType, f.child("args").args())
		if err != nil {
			return nil, err
		}
		md.Args = []*metadata.TypeMetadata{args}
	}
	if d.Description != "" {
		md.Description = d.Description
	}
	return md, nil
}

// action compiles an action declaration into its slots
func (w *walker) action(d *declare.Declaration) (*metadata.Action, error) {
	f := frame{path: []string{d.Name}}

	method, path, err := metadata.ParseActionName(d.Name)
	if err != nil {
		return nil, w.fail(errors.ErrInvalidActionName, f, "%v", err)
	}

	obj := w.objectShape(d.Type)
	if obj == nil {
		return nil, w.fail(errors.ErrUnsupportedShape, f, "action %s must be declared as an object of slots, got %s", d.Name, d.Type)
	}

	act := &metadata.Action{Name: d.Name, Method: method, Path: path, Description: d.Description}
	for _, field := range obj.Fields {
		slotFrame := f.child(field.Name)
		if !isSlot(field.Name) {
			return nil, w.fail(errors.ErrUnknownActionSlot, slotFrame, "unknown action slot %q", field.Name)
		}
		if act.Slot(field.Name) != nil {
			return nil, w.fail(errors.ErrDuplicateDeclaration, slotFrame, "slot %s declared twice", field.Name)
		}
		if field.Name != "return" {
			slotFrame = slotFrame.args()
		}
		md, err := w.field(field, slotFrame)
		if err != nil {
			return nil, err
		}
		if err := act.SetSlot(field.Name, md); err != nil {
			return nil, w.fail(errors.ErrUnknownActionSlot, slotFrame, "%v", err)
		}
	}
	if act.Return == nil {
		return nil, w.fail(errors.ErrMissingActionReturn, f, "missing return type for action %s", d.Name)
	}
	return act, nil
}

func isSlot(name string) bool {
	for _, slot := range metadata.ActionSlots {
		if slot == name {
			return true
		}
	}
	return false
}

// objectShape unwraps names down to an object declaration
func (w *walker) objectShape(t declare.Type) *declare.ObjectType {
	for i := 0; i < 8; i++ {
		switch v := t.(type) {
		case *declare.ObjectType:
			return v
		case *declare.NamedType:
			t = v.Type
		case *declare.RefType:
			d, ok := w.decls[v.Name]
			if !ok {
				return nil
			}
			t = d.Type
		default:
			return nil
		}
	}
	return nil
}

func (w *walker) compile(t declare.Type, f frame) (*metadata.TypeMetadata, error) {
	switch v := t.(type) {
	case nil:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "missing type")
	case *declare.PrimitiveType:
		return w.node(v.Kind, f), nil
	case *declare.LiteralType:
		return w.union([]declare.Type{v}, f)
	case *declare.NullType, *declare.UndefinedType:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "%s is only valid as a union member", t)
	case *declare.ObjectType:
		return w.object(v, f)
	case *declare.RefType:
		return w.named(v.Name, nil, f)
	case *declare.NamedType:
		if _, ok := w.names[v.Name]; ok {
			return w.named(v.Name, v.Type, f)
		}
		md, err := w.compile(v.Type, f)
		if err != nil {
			return nil, err
		}
		md.TypeName = v.Name
		return md, nil
	case *declare.ArrayType:
		return w.array(v, f)
	case *declare.UnionType:
		return w.union(v.Members, f)
	case *declare.IntersectionType:
		return w.intersection(v, f)
	case *declare.ModelArgsType:
		return w.modelArgs(v, f)
	case *declare.FuncType:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "function types are only valid as root declarations")
	default:
		return nil, w.fail(errors.ErrUnsupportedShape, f, "unsupported declaration %T", t)
	}
}

// named expands a registered type or collapses it to a reference
func (w *walker) named(name string, inline declare.Type, f frame) (*metadata.TypeMetadata, error) {
	if _, ok := w.names[name]; !ok {
		return nil, w.fail(errors.ErrUnresolvedReference, f, "%s is not a declared model or input", name)
	}

	threshold := w.compiler.policy.Threshold(w.group, f.inArgs)
	if f.expanding(name) || len(f.stack) >= threshold {
		md := w.node(metadata.KindReference, f)
		md.TypeName = name
		return md, nil
	}

	shape := inline
	d := w.decls[name]
	if shape == nil {
		shape = d.Type
	}
	md, err := w.compile(shape, f.enter(name))
	if err != nil {
		return nil, err
	}
	md.TypeName = name
	if md.Description == "" && d != nil {
		md.Description = d.Description
	}
	return md, nil
}

func (w *walker) object(obj *declare.ObjectType, f frame) (*metadata.TypeMetadata, error) {
	md := w.node(metadata.KindObject, f)
	seen := make(map[string]bool, len(obj.Fields))
	for _, field := range obj.Fields {
		child := f.child(field.Name)
		if seen[field.Name] {
			return nil, w.fail(errors.ErrDuplicateDeclaration, child, "property %s declared twice", field.Name)
		}
		seen[field.Name] = true

		prop, err := w.field(field, child)
		if err != nil {
			return nil, err
		}
		md.Properties = append(md.Properties, prop)
	}
	return md, nil
}

// field compiles one object member and applies its own modifiers
func (w *walker) field(field *declare.FieldDecl, f frame) (*metadata.TypeMetadata, error) {
	md, err := w.compile(field.Type, f)
	if err != nil {
		return nil, err
	}
	if field.IsOptional {
		md.CanBeUndefined = true
	}
	if field.IsNullable {
		md.Nullable = true
	}
	if field.Description != "" {
		md.Description = field.Description
	}
	if field.Deprecated != "" {
		md.Deprecated = field.Deprecated
	}
	return md, nil
}

func (w *walker) array(arr *declare.ArrayType, f frame) (*metadata.TypeMetadata, error) {
	if _, nested := arr.Elem.(*declare.ArrayType); nested {
		return nil, w.fail(errors.ErrNestedArray, f, "arrays of arrays are not supported")
	}
	md, err := w.compile(arr.Elem, f)
	if err != nil {
		return nil, err
	}
	if md.Array {
		return nil, w.fail(errors.ErrNestedArray, f, "arrays of arrays are not supported")
	}
	if md.Optional() {
		return nil, w.fail(errors.ErrNullableArrayElement, f, "array elements cannot be null or undefined")
	}
	md.Array = true
	return md, nil
}

// intersection flattens object members into one object. Members are always
// expanded, never referenced.
func (w *walker) intersection(in *declare.IntersectionType, f frame) (*metadata.TypeMetadata, error) {
	md := w.node(metadata.KindObject, f)
	index := make(map[string]int)

	for i, member := range in.Members {
		part, err := w.expand(member, f)
		if err != nil {
			return nil, err
		}
		if part.Kind != metadata.KindObject || part.Array {
			return nil, w.fail(errors.ErrIntersectionMember, f, "intersection member %d (%s) is not an object", i, member)
		}
		for _, prop := range part.Properties {
			if at, ok := index[prop.PropertyName]; ok {
				md.Properties[at] = prop
				continue
			}
			index[prop.PropertyName] = len(md.Properties)
			md.Properties = append(md.Properties, prop)
		}
	}
	return md, nil
}

// expand compiles a member in full, resolving a top-level name without
// creating a reference
func (w *walker) expand(member declare.Type, f frame) (*metadata.TypeMetadata, error) {
	switch v := member.(type) {
	case *declare.RefType:
		d, ok := w.decls[v.Name]
		if !ok {
			return nil, w.fail(errors.ErrUnresolvedReference, f, "%s is not a declared model or input", v.Name)
		}
		if f.expanding(v.Name) {
			return nil, w.fail(errors.ErrIntersectionMember, f, "%s is expanded inside itself", v.Name)
		}
		return w.compile(d.Type, f.enter(v.Name))
	case *declare.NamedType:
		if f.expanding(v.Name) {
			return nil, w.fail(errors.ErrIntersectionMember, f, "%s is expanded inside itself", v.Name)
		}
		return w.compile(v.Type, f.enter(v.Name))
	default:
		return w.compile(member, f)
	}
}

// modelArgs attaches field arguments to the matching model properties. The
// result is anonymous: the same model may carry different arguments elsewhere.
func (w *walker) modelArgs(m *declare.ModelArgsType, f frame) (*metadata.TypeMetadata, error) {
	var (
		md  *metadata.TypeMetadata
		err error
	)
	switch v := m.Model.(type) {
	case *declare.RefType:
		md, err = w.expand(v, f)
	case *declare.NamedType:
		md, err = w.expand(v, f)
	default:
		md, err = w.compile(m.Model, f)
	}
	if err != nil {
		return nil, err
	}
	if md.Kind != metadata.KindObject || md.Array {
		return nil, w.fail(errors.ErrUnsupportedShape, f, "ModelWithArgs needs an object model, got %s", m.Model)
	}

	args := w.objectShape(m.Args)
	if args == nil {
		return nil, w.fail(errors.ErrModelArgPropertyInvalid, f, "ModelWithArgs arguments must be an object, got %s", m.Args)
	}
	for _, field := range args.Fields {
		prop := md.Property(field.Name)
		if prop == nil {
			return nil, w.fail(errors.ErrModelArgPropertyInvalid, f.child(field.Name),
				"%s is not a property of the model", field.Name)
		}
		argFrame := f.child(field.Name).child("args").args()
		arg, err := w.field(field, argFrame)
		if err != nil {
			return nil, err
		}
		prop.Args = []*metadata.TypeMetadata{arg}
	}
	return md, nil
}
