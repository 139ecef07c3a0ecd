package errors

import (
	"encoding/json"
)

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status  string          `json:"status"`
	Errors  []*CompileError `json:"errors"`
	Summary Summary         `json:"summary"`
}

// Summary contains error counts
type Summary struct {
	ErrorCount int `json:"error_count"`
}

// MarshalJSON implements json.Marshaler
func (e *CompileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code        string   `json:"code"`
		Name        string   `json:"name"`
		Message     string   `json:"message"`
		Group       string   `json:"group,omitempty"`
		Declaration string   `json:"declaration,omitempty"`
		Path        []string `json:"path,omitempty"`
		Suggestion  string   `json:"suggestion,omitempty"`
	}{
		Code:        e.Code,
		Name:        CodeName(e.Code),
		Message:     e.Message,
		Group:       string(e.Group),
		Declaration: e.Declaration,
		Path:        e.Path,
		Suggestion:  e.Suggestion,
	})
}

// FormatListAsJSON formats a compile result as indented JSON
func FormatListAsJSON(list List) (string, error) {
	status := "success"
	if len(list) > 0 {
		status = "error"
	}

	output := JSONOutput{
		Status:  status,
		Errors:  list,
		Summary: Summary{ErrorCount: len(list)},
	}
	if output.Errors == nil {
		output.Errors = []*CompileError{}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
