package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/runtime/crud"
	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

// ErrorCode is the machine-readable code of an action error
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeNotFound          ErrorCode = "not_found"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeInternal          ErrorCode = "internal"
	CodeNotImplemented    ErrorCode = "not_implemented"
)

// HTTPStatus maps an ErrorCode to an HTTP status code
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error is the JSON error envelope of action responses
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	retryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errBadRequest(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// errorFor classifies an action failure. Internal errors keep their message
// out of the response.
func errorFor(err error) *Error {
	var (
		svcErr     *Error
		validation *dispatch.ValidationError
		limited    *dispatch.RateLimitError
	)
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.As(err, &limited):
		return &Error{Code: CodeResourceExhausted, Message: limited.Error(), retryAfter: limited.RetryAfter}
	case errors.As(err, &validation):
		return &Error{Code: CodeInvalidArgument, Message: validation.Error()}
	case errors.Is(err, schema.ErrNoActionResolver):
		return &Error{Code: CodeNotImplemented, Message: err.Error()}
	case errors.Is(err, crud.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	default:
		return &Error{Code: CodeInternal, Message: "internal server error"}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, svcErr *Error) {
	if svcErr.retryAfter > 0 {
		seconds := int((svcErr.retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	h.writeJSON(w, svcErr.Code.HTTPStatus(), map[string]any{"error": svcErr})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}
