// Package errors defines the structured errors raised while compiling
// declarations into type metadata.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// CompileError is a fatal problem found in one declaration.
type CompileError struct {
	Code        string         // "TG001", "TG002", etc.
	Message     string         // Human-readable message
	Group       metadata.Group // Declaration group being compiled
	Declaration string         // Name of the member of that group
	Path        []string       // Debug path, starting with the declaration name
	Suggestion  string         // Optional hint on how to fix the declaration
}

// New creates a CompileError
func New(code, message string) *CompileError {
	return &CompileError{Code: code, Message: message}
}

// Newf creates a CompileError with a formatted message
func Newf(code, format string, args ...interface{}) *CompileError {
	return New(code, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *CompileError) Error() string {
	location := e.Location()
	if location == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, location, e.Message)
}

// Location renders the group and the debug path as "queries.posts.args.skip".
// The path starts at the declaration; without one the declaration name is used.
func (e *CompileError) Location() string {
	parts := make([]string, 0, len(e.Path)+1)
	if e.Group != "" {
		parts = append(parts, string(e.Group))
	}
	if len(e.Path) > 0 {
		parts = append(parts, e.Path...)
	} else if e.Declaration != "" {
		parts = append(parts, e.Declaration)
	}
	return strings.Join(parts, ".")
}

// Is matches errors with the same code, so errors.Is(err, errors.New(ErrNestedArray, ""))
// works as a code check
func (e *CompileError) Is(target error) bool {
	var other *CompileError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// At returns a copy of the error located at the given declaration
func (e *CompileError) At(group metadata.Group, declaration string) *CompileError {
	c := *e
	c.Group = group
	c.Declaration = declaration
	return &c
}

// WithPath returns a copy of the error with the debug path set
func (e *CompileError) WithPath(path []string) *CompileError {
	c := *e
	c.Path = append([]string(nil), path...)
	return &c
}

// WithSuggestion returns a copy of the error with a fix hint
func (e *CompileError) WithSuggestion(suggestion string) *CompileError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// HasCode reports whether err is, or wraps, a CompileError with the given code
func HasCode(err error, code string) bool {
	var list List
	if errors.As(err, &list) {
		for _, e := range list {
			if e.Code == code {
				return true
			}
		}
		return false
	}
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == code
}
