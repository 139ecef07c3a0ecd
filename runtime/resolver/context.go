// Package resolver defines the resolver shapes an application registers and
// the registry the schema builder and dispatch engine look them up in.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// RequestInfo carries the transport handles of one request.
type RequestInfo struct {
	ID         string
	RemoteAddr string
	Headers    http.Header
	HTTP       *http.Request
	Writer     http.ResponseWriter
}

// Context is handed to every resolver invocation.
type Context struct {
	context.Context
	Request RequestInfo
	Logger  *zap.Logger
	Values  map[string]any // values computed by context resolvers, keyed by name
}

// Get returns a context resolver value by name
func (c *Context) Get(name string) (any, bool) {
	if c == nil || c.Values == nil {
		return nil, false
	}
	v, ok := c.Values[name]
	return v, ok
}

// Args is the flat argument map of a field invocation.
type Args map[string]any

// Has reports whether an argument was supplied
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string argument or ""
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a numeric argument as int
func (a Args) Int(name string) (int, bool) {
	switch v := a[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean argument
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Map returns a nested object argument
func (a Args) Map(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

type requestKey struct{}

// WithRequest attaches transport request info to ctx
func WithRequest(ctx context.Context, req RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// RequestFrom returns the request info attached by WithRequest
func RequestFrom(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	req, _ := ctx.Value(requestKey{}).(RequestInfo)
	return req
}
