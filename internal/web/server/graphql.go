package server

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"github.com/conduit-lang/typegraph/internal/web/middleware"
	"github.com/conduit-lang/typegraph/internal/web/websocket"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// maxBodyBytes bounds GraphQL and action request bodies
const maxBodyBytes = 4 << 20

// GraphQLRequest is the body of a GraphQL HTTP request
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// requestContext derives the execution context of one request: a fresh
// batch scope and the transport handles resolvers read through RequestFrom.
func (h *Handler) requestContext(ctx context.Context, r *http.Request, w http.ResponseWriter) context.Context {
	ctx = resolver.WithRequest(ctx, resolver.RequestInfo{
		ID:         middleware.GetRequestID(r.Context()),
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
		HTTP:       r,
		Writer:     w,
	})
	return h.engine.WithScope(ctx)
}

// serveGraphQL executes queries and mutations over GET and POST
func (h *Handler) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	req, err := parseGraphQLRequest(w, r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, &graphql.Result{
			Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError(err.Message)},
		})
		return
	}

	if r.Method == http.MethodGet && operationType(req.Query, req.OperationName) == ast.OperationTypeMutation {
		w.Header().Set("Allow", http.MethodPost)
		h.writeJSON(w, http.StatusMethodNotAllowed, &graphql.Result{
			Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError("mutations require POST")},
		})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        h.requestContext(r.Context(), r, w),
	})
	h.writeJSON(w, http.StatusOK, result)
}

func parseGraphQLRequest(w http.ResponseWriter, r *http.Request) (*GraphQLRequest, *Error) {
	req := &GraphQLRequest{}
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return nil, errBadRequest("variables must be a JSON object")
			}
		}
	} else {
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, errBadRequest("failed to read body")
			}
			req.Query = string(data)
		} else if err := json.NewDecoder(body).Decode(req); err != nil {
			return nil, errBadRequest("body must be a JSON GraphQL request")
		}
	}

	if req.Query == "" {
		return nil, errBadRequest("query is required")
	}
	return req, nil
}

// operationType returns the type of the operation that would run, or ""
// when the document does not parse.
func operationType(query, operationName string) string {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return ""
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" || (op.Name != nil && op.Name.Value == operationName) {
			return op.Operation
		}
	}
	return ""
}

// execute is the websocket executor: subscriptions stream through
// graphql.Subscribe, other operations yield a single result.
func (h *Handler) execute(ctx context.Context, r *http.Request, req websocket.Request) <-chan *graphql.Result {
	ctx = h.requestContext(ctx, r, nil)
	params := graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	}

	if operationType(req.Query, req.OperationName) == ast.OperationTypeSubscription {
		return graphql.Subscribe(params)
	}
	out := make(chan *graphql.Result, 1)
	out <- graphql.Do(params)
	close(out)
	return out
}
