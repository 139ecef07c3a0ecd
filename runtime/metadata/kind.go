package metadata

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind identifies the structural shape of a TypeMetadata node.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindBigInt
	KindObject
	KindEnum
	KindUnion
	KindReference
	// KindFunction and KindProperty are reserved. They survive a decode but
	// are never produced by the compiler.
	KindFunction
	KindProperty
)

var kindNames = [...]string{
	KindNumber:    "number",
	KindString:    "string",
	KindBoolean:   "boolean",
	KindBigInt:    "bigint",
	KindObject:    "object",
	KindEnum:      "enum",
	KindUnion:     "union",
	KindReference: "reference",
	KindFunction:  "function",
	KindProperty:  "property",
}

// String returns the lowercase name of the kind
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind converts a kind name back into a Kind
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown kind: %q", s)
}

// IsPrimitive reports whether the kind is a scalar leaf
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindNumber, KindString, KindBoolean, KindBigInt:
		return true
	default:
		return false
	}
}

// IsReserved reports whether the kind may not appear in a built schema
func (k Kind) IsReserved() bool {
	return k == KindFunction || k == KindProperty
}

// MarshalJSON implements json.Marshaler
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("kind must be a string: %w", err)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("kind must be a string: %w", err)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
