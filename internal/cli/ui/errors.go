// Package ui renders command output for terminals.
package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a structured terminal message
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	Help        []string
	NoColor     bool
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Format renders a message
//
// Example output:
//
//	✗ MODEL NOT FOUND: Pst
//	   No model named 'Pst'.
//
//	   Did you mean: Post?
//
//	   → List models: typegraph describe app.yaml
func Format(m Message) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header = paint(m.NoColor, color.FgYellow, color.Bold)
		body = paint(m.NoColor, color.FgYellow)
		symbol = "!"
	case LevelInfo:
		header = paint(m.NoColor, color.FgCyan, color.Bold)
		body = paint(m.NoColor, color.FgCyan)
		symbol = "i"
	default:
		header = paint(m.NoColor, color.FgRed, color.Bold)
		body = paint(m.NoColor, color.FgRed)
		symbol = "✗"
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(m.Context))
		body.Fprintf(&b, "   %s\n", m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	for _, d := range m.Details {
		fmt.Fprintf(&b, "   - %s\n", d)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		paint(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Help) > 0 {
		b.WriteString("\n")
		cyan := paint(m.NoColor, color.FgCyan)
		for _, h := range m.Help {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write writes a formatted message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	return paint(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// NotFound reports an unknown declaration name with close matches from
// candidates
func NotFound(kind, name string, candidates []string, file string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     kind + " not found",
		Problem:     fmt.Sprintf("No %s named '%s'.", strings.ToLower(kind), name),
		Suggestions: FindSimilar(name, candidates, nil),
		Help:        []string{"List declarations: typegraph describe " + file},
		NoColor:     noColor,
	}
}

// InvalidMetadata reports the problems of a metadata file. Validation
// errors are listed one per line.
func InvalidMetadata(file string, err error, noColor bool) Message {
	m := Message{
		Level:   LevelError,
		Context: "invalid metadata",
		Problem: fmt.Sprintf("%s failed validation.", file),
		Help:    []string{"Recompile the declarations that produced " + file},
		NoColor: noColor,
	}

	var verrs metadata.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			m.Details = append(m.Details, fmt.Sprintf("%s [%s]", e.Error(), e.Code))
		}
	} else {
		m.Details = []string{err.Error()}
	}
	return m
}

// ConfigError reports an unusable configuration
func ConfigError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Help: []string{
			"View config: cat typegraph.yaml",
			"Override with TYPEGRAPH_* environment variables",
		},
		NoColor: noColor,
	}
}

// Warning creates a warning message
func Warning(message string, noColor bool) Message {
	return Message{Level: LevelWarning, Problem: message, NoColor: noColor}
}
