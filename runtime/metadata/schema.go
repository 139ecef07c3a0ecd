package metadata

import (
	"regexp"
	"strings"
)

// identifierPattern is the rule enum members and union members must follow
var identifierPattern = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

// IsIdentifier reports whether s can be used as an enum or union member name
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// TypeMetadata describes a single structural type occurrence.
type TypeMetadata struct {
	Kind           Kind            `json:"kind" yaml:"kind"`
	TypeName       string          `json:"typeName,omitempty" yaml:"typeName,omitempty"`         // Stable name for named types
	PropertyName   string          `json:"propertyName,omitempty" yaml:"propertyName,omitempty"` // Name inside the enclosing object
	PropertyPath   string          `json:"propertyPath,omitempty" yaml:"propertyPath,omitempty"` // Dotted path from the root declaration
	Nullable       bool            `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	CanBeUndefined bool            `json:"canBeUndefined,omitempty" yaml:"canBeUndefined,omitempty"`
	Array          bool            `json:"array,omitempty" yaml:"array,omitempty"`
	Properties     []*TypeMetadata `json:"properties,omitempty" yaml:"properties,omitempty"` // Object fields, enum members or union members
	Args           []*TypeMetadata `json:"args,omitempty" yaml:"args,omitempty"`             // Field arguments
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Deprecated     string          `json:"deprecated,omitempty" yaml:"deprecated,omitempty"` // Deprecation reason
}

// IsNamed reports whether the node has a stable type name
func (t *TypeMetadata) IsNamed() bool {
	return t != nil && t.TypeName != ""
}

// IsReference reports whether the node points at a named type
func (t *TypeMetadata) IsReference() bool {
	return t != nil && t.Kind == KindReference
}

// Optional reports whether a value for the node may be absent
func (t *TypeMetadata) Optional() bool {
	return t.Nullable || t.CanBeUndefined
}

// Property returns the child property with the given name
func (t *TypeMetadata) Property(name string) *TypeMetadata {
	if t == nil {
		return nil
	}
	for _, p := range t.Properties {
		if p.PropertyName == name {
			return p
		}
	}
	return nil
}

// PropertyNames returns the names of the node's properties in order
func (t *TypeMetadata) PropertyNames() []string {
	names := make([]string, 0, len(t.Properties))
	for _, p := range t.Properties {
		names = append(names, p.PropertyName)
	}
	return names
}

// Clone returns a deep copy of the node
func (t *TypeMetadata) Clone() *TypeMetadata {
	if t == nil {
		return nil
	}
	c := *t
	c.Properties = cloneList(t.Properties)
	c.Args = cloneList(t.Args)
	return &c
}

func cloneList(list []*TypeMetadata) []*TypeMetadata {
	if list == nil {
		return nil
	}
	out := make([]*TypeMetadata, len(list))
	for i, item := range list {
		out[i] = item.Clone()
	}
	return out
}

// WalkFunc is called for every node visited by Walk. Returning false skips
// the node's children.
type WalkFunc func(node *TypeMetadata, path []string) bool

// Walk visits the node and its descendants in pre-order. Args are visited
// after properties under a synthetic "args" path segment.
func (t *TypeMetadata) Walk(fn WalkFunc) {
	walk(t, nil, fn)
}

func walk(t *TypeMetadata, path []string, fn WalkFunc) {
	if t == nil {
		return
	}
	if t.PropertyName != "" {
		path = append(path[:len(path):len(path)], t.PropertyName)
	}
	if !fn(t, path) {
		return
	}
	for _, p := range t.Properties {
		walk(p, path, fn)
	}
	if len(t.Args) > 0 {
		argsPath := append(path[:len(path):len(path)], "args")
		for _, a := range t.Args {
			walk(a, argsPath, fn)
		}
	}
}

// JoinPath builds a dotted property path, skipping empty segments
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}
