package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	errorColor      = color.New(color.FgRed, color.Bold)
	locationColor   = color.New(color.FgCyan)
	suggestionColor = color.New(color.FgCyan, color.Bold)
	codeColor       = color.New(color.FgHiBlack)
)

// FormatForTerminal renders the error with colors for CLI output
func (e *CompileError) FormatForTerminal() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s\n",
		errorColor.Sprintf("error[%s]:", e.Code),
		e.Message))

	if location := e.Location(); location != "" {
		sb.WriteString(fmt.Sprintf("  %s %s\n", locationColor.Sprint("-->"), location))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  %s %s\n", suggestionColor.Sprint("help:"), e.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  %s\n", codeColor.Sprint(CodeName(e.Code))))

	return sb.String()
}

// FormatListForTerminal renders every error followed by a summary line
func FormatListForTerminal(list List) string {
	var sb strings.Builder
	for _, e := range list {
		sb.WriteString(e.FormatForTerminal())
		sb.WriteString("\n")
	}
	sb.WriteString(FormatSummary(len(list)))
	return sb.String()
}

// FormatSummary formats the error count summary
func FormatSummary(errorCount int) string {
	if errorCount == 0 {
		return color.GreenString("No errors") + "\n"
	}
	return errorColor.Sprintf("Compilation failed with %d error(s)", errorCount) + "\n"
}
