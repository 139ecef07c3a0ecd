package errors

import (
	"fmt"
	"strings"
)

// MaxErrors is the maximum number of errors a Collector keeps
const MaxErrors = 100

// List is every error of a failed compile pass.
type List []*CompileError

// Error implements the error interface
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d compile errors:\n  %s", len(l), strings.Join(msgs, "\n  "))
}

// Collector accumulates compile errors up to a maximum count.
type Collector struct {
	errors   List
	maxCount int
}

// NewCollector creates a Collector that keeps up to MaxErrors errors
func NewCollector() *Collector {
	return &Collector{maxCount: MaxErrors}
}

// NewCollectorWithMax creates a Collector with a custom maximum
func NewCollectorWithMax(maxCount int) *Collector {
	return &Collector{maxCount: maxCount}
}

// Add records an error. Plain errors are wrapped as ErrUnsupportedShape;
// a List is flattened.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case List:
		for _, item := range e {
			c.add(item)
		}
	case *CompileError:
		c.add(e)
	default:
		c.add(New(ErrUnsupportedShape, err.Error()))
	}
}

func (c *Collector) add(e *CompileError) {
	if len(c.errors) >= c.maxCount {
		return
	}
	if e.Suggestion == "" {
		e = e.WithSuggestion(SuggestionFor(e.Code))
	}
	c.errors = append(c.errors, e)
}

// HasErrors reports whether any error was recorded
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Count returns the number of recorded errors
func (c *Collector) Count() int {
	return len(c.errors)
}

// Errors returns the recorded errors
func (c *Collector) Errors() List {
	return c.errors
}

// Err returns the recorded errors as an error, or nil
func (c *Collector) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors
}
