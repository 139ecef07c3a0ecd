// Package naming holds the string formatting policy used for generated type
// names, generated field names and their descriptions.
package naming

import (
	"strings"
	"unicode"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Event is a persistence change kind observed by generated subscriptions.
type Event string

const (
	EventInsert Event = "Insert"
	EventUpdate Event = "Update"
	EventSave   Event = "Save"
	EventRemove Event = "Remove"
	EventOne    Event = "One"
	EventMany   Event = "Many"
	EventCount  Event = "Count"
)

// ObserveEvents lists the generated subscription kinds in declaration order
var ObserveEvents = []Event{EventInsert, EventUpdate, EventSave, EventRemove, EventOne, EventMany, EventCount}

// Strategy is a set of pure naming functions. Any nil member falls back to
// the default implementation.
type Strategy struct {
	FallbackTypeName func(md *metadata.TypeMetadata, input bool) string
	UnionTypeName    func(md *metadata.TypeMetadata) string
	EnumTypeName     func(md *metadata.TypeMetadata) string

	QueryOne        func(model string) string
	QueryOneNotNull func(model string) string
	QueryMany       func(model string) string
	QueryCount      func(model string) string
	MutationSave    func(model string) string
	MutationRemove  func(model string) string
	Observe         func(model string, event Event) string

	WhereInput func(model string, path ...string) string
	OrderInput func(model string, path ...string) string
	SaveInput  func(model string, path ...string) string

	Description func(kind string, model string) string
}

// Default returns the built-in naming strategy
func Default() *Strategy {
	return &Strategy{
		FallbackTypeName: defaultFallbackTypeName,
		UnionTypeName:    func(md *metadata.TypeMetadata) string { return PathToPascal(md.PropertyPath) + "Union" },
		EnumTypeName:     func(md *metadata.TypeMetadata) string { return PathToPascal(md.PropertyPath) + "Enum" },
		QueryOne:         func(m string) string { return LowerFirst(m) + "One" },
		QueryOneNotNull:  func(m string) string { return LowerFirst(m) + "OneNotNull" },
		QueryMany:        func(m string) string { return LowerFirst(m) + "Many" },
		QueryCount:       func(m string) string { return LowerFirst(m) + "Count" },
		MutationSave:     func(m string) string { return LowerFirst(m) + "Save" },
		MutationRemove:   func(m string) string { return LowerFirst(m) + "Remove" },
		Observe:          func(m string, e Event) string { return LowerFirst(m) + "Observe" + string(e) },
		WhereInput:       func(m string, path ...string) string { return m + "Where" + pascalSegments(path) },
		OrderInput:       func(m string, path ...string) string { return m + "Order" + pascalSegments(path) },
		SaveInput:        func(m string, path ...string) string { return m + "Save" + pascalSegments(path) },
		Description:      defaultDescription,
	}
}

// WithDefaults fills nil members of s from Default
func (s *Strategy) WithDefaults() *Strategy {
	d := Default()
	if s == nil {
		return d
	}
	out := *s
	if out.FallbackTypeName == nil {
		out.FallbackTypeName = d.FallbackTypeName
	}
	if out.UnionTypeName == nil {
		out.UnionTypeName = d.UnionTypeName
	}
	if out.EnumTypeName == nil {
		out.EnumTypeName = d.EnumTypeName
	}
	if out.QueryOne == nil {
		out.QueryOne = d.QueryOne
	}
	if out.QueryOneNotNull == nil {
		out.QueryOneNotNull = d.QueryOneNotNull
	}
	if out.QueryMany == nil {
		out.QueryMany = d.QueryMany
	}
	if out.QueryCount == nil {
		out.QueryCount = d.QueryCount
	}
	if out.MutationSave == nil {
		out.MutationSave = d.MutationSave
	}
	if out.MutationRemove == nil {
		out.MutationRemove = d.MutationRemove
	}
	if out.Observe == nil {
		out.Observe = d.Observe
	}
	if out.WhereInput == nil {
		out.WhereInput = d.WhereInput
	}
	if out.OrderInput == nil {
		out.OrderInput = d.OrderInput
	}
	if out.SaveInput == nil {
		out.SaveInput = d.SaveInput
	}
	if out.Description == nil {
		out.Description = d.Description
	}
	return &out
}

func defaultFallbackTypeName(md *metadata.TypeMetadata, input bool) string {
	name := PathToPascal(md.PropertyPath)
	if name == "" {
		name = "Anonymous"
	}
	if input && !strings.HasSuffix(name, "Input") {
		name += "Input"
	}
	return name
}

func defaultDescription(kind, model string) string {
	switch kind {
	case "one":
		return "Finds a single " + model + " matching the given conditions."
	case "oneNotNull":
		return "Finds a single " + model + " matching the given conditions; fails when none exists."
	case "many":
		return "Finds every " + model + " matching the given conditions."
	case "count":
		return "Counts " + model + " entries matching the given conditions."
	case "save":
		return "Inserts or updates a " + model + "."
	case "remove":
		return "Removes " + model + " entries matching the given conditions."
	case "where":
		return "Conditions used to filter " + model + " entries."
	case "order":
		return "Sort order for " + model + " entries."
	case "saveInput":
		return "Values used to insert or update a " + model + "."
	default:
		if strings.HasPrefix(kind, "observe") {
			return "Emits when a " + model + " change matches: " + strings.TrimPrefix(kind, "observe") + "."
		}
		return ""
	}
}

// PathToPascal converts "posts.filter" into "PostsFilter". Non-alphanumeric
// runes act as word breaks.
func PathToPascal(path string) string {
	var sb strings.Builder
	upper := true
	for _, r := range path {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func pascalSegments(path []string) string {
	return PathToPascal(strings.Join(path, "."))
}

// LowerFirst lower-cases the first rune
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
