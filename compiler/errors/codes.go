package errors

// Error codes raised by the declaration compiler.
const (
	ErrUnsupportedShape        = "TG001"
	ErrNestedArray             = "TG002"
	ErrIntersectionMember      = "TG003"
	ErrModelArgPropertyInvalid = "TG004"
	ErrUnresolvedReference     = "TG005"
	ErrDuplicateDeclaration    = "TG006"
	ErrInvalidEnumMember       = "TG007"
	ErrInvalidUnionMember      = "TG008"
	ErrMissingActionReturn     = "TG009"
	ErrMixedLiteralUnion       = "TG010"
	ErrUnknownActionSlot       = "TG011"
	ErrNullableArrayElement    = "TG012"
	ErrInvalidActionName       = "TG013"
)

var codeNames = map[string]string{
	ErrUnsupportedShape:        "unsupported shape",
	ErrNestedArray:             "nested array",
	ErrIntersectionMember:      "invalid intersection member",
	ErrModelArgPropertyInvalid: "model argument property invalid",
	ErrUnresolvedReference:     "unresolved reference",
	ErrDuplicateDeclaration:    "duplicate declaration",
	ErrInvalidEnumMember:       "invalid enum member",
	ErrInvalidUnionMember:      "invalid union member",
	ErrMissingActionReturn:     "missing return type",
	ErrMixedLiteralUnion:       "mixed literal union",
	ErrUnknownActionSlot:       "unknown action slot",
	ErrNullableArrayElement:    "nullable array element",
	ErrInvalidActionName:       "invalid action name",
}

var codeSuggestions = map[string]string{
	ErrNestedArray:             "wrap the inner array in an object field",
	ErrIntersectionMember:      "only object shapes and references to object models can be intersected",
	ErrModelArgPropertyInvalid: "argument shapes must be keyed by properties of the model",
	ErrUnresolvedReference:     "declare the referenced name as a model or an input",
	ErrDuplicateDeclaration:    "rename one of the declarations",
	ErrInvalidEnumMember:       "enum members must match ^[_a-zA-Z][_a-zA-Z0-9]*$",
	ErrInvalidUnionMember:      "union members must be named object models",
	ErrMissingActionReturn:     "add a return field to the action declaration",
	ErrMixedLiteralUnion:       "use literals of a single kind in one union",
	ErrUnknownActionSlot:       "action slots are return, params, query, headers, cookies and body",
	ErrNullableArrayElement:    "make the array itself nullable instead of its elements",
	ErrInvalidActionName:       "name actions like \"GET /posts/:id\"",
}

// CodeName returns a short description of an error code
func CodeName(code string) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "unknown error"
}

// SuggestionFor returns the default fix hint for an error code
func SuggestionFor(code string) string {
	return codeSuggestions[code]
}
