package declare

import "strconv"

// FieldDecl is one member of an object declaration.
type FieldDecl struct {
	Name        string
	Type        Type
	IsOptional  bool // may be undefined
	IsNullable  bool // may be null
	Description string
	Deprecated  string // deprecation reason
}

// Field declares an object member
func Field(name string, t Type) *FieldDecl {
	return &FieldDecl{Name: name, Type: t}
}

// Optional marks the field as possibly undefined
func (f *FieldDecl) Optional() *FieldDecl {
	f.IsOptional = true
	return f
}

// Nullable marks the field as possibly null
func (f *FieldDecl) Nullable() *FieldDecl {
	f.IsNullable = true
	return f
}

// Describe sets the field description
func (f *FieldDecl) Describe(description string) *FieldDecl {
	f.Description = description
	return f
}

// Deprecate marks the field deprecated with a reason
func (f *FieldDecl) Deprecate(reason string) *FieldDecl {
	f.Deprecated = reason
	return f
}

// String renders the field as name[?]: type with annotations
func (f *FieldDecl) String() string {
	s := f.Name
	if f.IsOptional {
		s += "?"
	}
	s += ": " + typeString(f.Type)
	if f.IsNullable {
		s += " | null"
	}
	if f.Description != "" {
		s += " @description(" + strconv.Quote(f.Description) + ")"
	}
	if f.Deprecated != "" {
		s += " @deprecated(" + strconv.Quote(f.Deprecated) + ")"
	}
	return s
}
