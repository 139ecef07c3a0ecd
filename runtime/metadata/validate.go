package metadata

import (
	"fmt"
	"strings"
)

// Validation codes reported by Application.Validate
const (
	CodeDuplicateDeclaration = "duplicate_declaration"
	CodeDuplicateType        = "duplicate_type"
	CodeModelInputConflict   = "model_input_conflict"
	CodeUnresolvedReference  = "unresolved_reference"
	CodeReferenceProperties  = "reference_with_properties"
	CodeInvalidMemberName    = "invalid_member_name"
	CodeMissingActionReturn  = "missing_action_return"
)

// ValidationError is one problem found by Application.Validate.
type ValidationError struct {
	Code    string
	Group   Group
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Group, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Group, e.Path, e.Message)
}

// ValidationErrors collects every problem of a validation pass.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the whole application after compilation. It reports all
// problems instead of stopping at the first one; the returned error is nil or
// a ValidationErrors value.
func (a *Application) Validate() error {
	var errs ValidationErrors

	models := countNames(a.Models)
	inputs := countNames(a.Inputs)

	for _, g := range []Group{GroupModels, GroupInputs} {
		seen := make(map[string]bool)
		for _, m := range a.Group(g) {
			if seen[m.TypeName] {
				errs = append(errs, &ValidationError{
					Code:    CodeDuplicateType,
					Group:   g,
					Path:    m.TypeName,
					Message: "duplicate type name " + m.TypeName,
				})
			}
			seen[m.TypeName] = true
		}
	}
	for name := range models {
		if inputs[name] > 0 {
			errs = append(errs, &ValidationError{
				Code:    CodeModelInputConflict,
				Group:   GroupInputs,
				Path:    name,
				Message: name + " is declared both as a model and as an input",
			})
		}
	}

	for _, g := range RootGroups {
		seen := make(map[string]bool)
		for _, m := range a.Group(g) {
			if seen[m.PropertyName] {
				errs = append(errs, &ValidationError{
					Code:    CodeDuplicateDeclaration,
					Group:   g,
					Path:    m.PropertyName,
					Message: "duplicate declaration " + m.PropertyName,
				})
			}
			seen[m.PropertyName] = true
		}
	}

	seenActions := make(map[string]bool)
	for _, act := range a.Actions {
		if seenActions[act.Name] {
			errs = append(errs, &ValidationError{
				Code:    CodeDuplicateDeclaration,
				Group:   GroupActions,
				Path:    act.Name,
				Message: "duplicate declaration " + act.Name,
			})
		}
		seenActions[act.Name] = true
		if act.Return == nil {
			errs = append(errs, &ValidationError{
				Code:    CodeMissingActionReturn,
				Group:   GroupActions,
				Path:    act.Name,
				Message: "missing return type",
			})
		}
	}

	check := func(g Group, root *TypeMetadata) {
		errs = append(errs, validateTree(g, root, models, inputs)...)
	}
	for _, g := range []Group{GroupModels, GroupInputs, GroupQueries, GroupMutations, GroupSubscriptions} {
		for _, m := range a.Group(g) {
			check(g, m)
		}
	}
	for _, act := range a.Actions {
		for _, slot := range ActionSlots {
			if md := act.Slot(slot); md != nil {
				check(GroupActions, md)
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func countNames(list []*TypeMetadata) map[string]int {
	counts := make(map[string]int, len(list))
	for _, m := range list {
		counts[m.TypeName]++
	}
	return counts
}

func validateTree(g Group, root *TypeMetadata, models, inputs map[string]int) []*ValidationError {
	var errs []*ValidationError
	root.Walk(func(node *TypeMetadata, path []string) bool {
		where := node.PropertyPath
		if where == "" {
			where = strings.Join(path, ".")
		}
		switch node.Kind {
		case KindReference:
			if len(node.Properties) > 0 {
				errs = append(errs, &ValidationError{
					Code:    CodeReferenceProperties,
					Group:   g,
					Path:    where,
					Message: "reference to " + node.TypeName + " must not carry properties",
				})
			}
			if models[node.TypeName]+inputs[node.TypeName] != 1 {
				errs = append(errs, &ValidationError{
					Code:    CodeUnresolvedReference,
					Group:   g,
					Path:    where,
					Message: fmt.Sprintf("reference %q does not resolve to exactly one named type", node.TypeName),
				})
			}
		case KindEnum, KindUnion:
			for _, member := range node.Properties {
				name := member.PropertyName
				if node.Kind == KindUnion {
					name = member.TypeName
				}
				if !IsIdentifier(name) {
					errs = append(errs, &ValidationError{
						Code:    CodeInvalidMemberName,
						Group:   g,
						Path:    where,
						Message: fmt.Sprintf("%s member %q is not a valid identifier", node.Kind, name),
					})
				}
			}
			// enum members are plain names
			return node.Kind == KindUnion
		}
		return true
	})
	return errs
}
