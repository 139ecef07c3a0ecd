package crud

import (
	"fmt"
	"reflect"
	"sort"
)

// Matches reports whether record satisfies where. A relation condition is
// checked against the related record, or any of the related records, that
// record carries under the same key; a record without them does not match.
func Matches(record map[string]any, where map[string]any) bool {
	for key, want := range where {
		got, ok := record[key]
		if nested, isNested := want.(map[string]any); isNested {
			if len(nested) == 0 {
				continue
			}
			if !ok || !matchesRelated(got, nested) {
				return false
			}
			continue
		}
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func matchesRelated(related any, where map[string]any) bool {
	switch v := related.(type) {
	case map[string]any:
		return Matches(v, where)
	case []map[string]any:
		for _, item := range v {
			if Matches(item, where) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok && Matches(m, where) {
				return true
			}
		}
	}
	return false
}

// RelationConditions returns the sorted keys of where that hold a non-empty
// relation condition.
func RelationConditions(where map[string]any) []string {
	var keys []string
	for k, v := range where {
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
