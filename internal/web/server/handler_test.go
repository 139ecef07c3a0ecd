package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/compiler"
	"github.com/conduit-lang/typegraph/internal/web/middleware"
	"github.com/conduit-lang/typegraph/internal/web/websocket"
	d "github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/metrics"
	"github.com/conduit-lang/typegraph/runtime/ratelimit"
	"github.com/conduit-lang/typegraph/runtime/resolver"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

func blogApp(t testing.TB) *metadata.Application {
	t.Helper()
	app, err := compiler.New().Compile(d.App("blog").
		Model("Post", d.Object(
			d.Field("id", d.Number()),
			d.Field("title", d.String()),
		)).
		Query("post", d.Func(d.Object(d.Field("id", d.Number())), d.Ref("Post"))).
		Mutation("addPost", d.Func(d.Object(d.Field("title", d.String())), d.Ref("Post"))).
		Subscription("postAdded", d.Ref("Post")).
		Action("GET /posts/:id", d.Object(
			d.Field("params", d.Object(d.Field("id", d.Number()))),
			d.Field("query", d.Object(d.Field("verbose", d.Boolean()).Optional())),
			d.Field("headers", d.Object(d.Field("tenant", d.String()))),
			d.Field("return", d.Ref("Post")),
		)).
		Action("POST /posts", d.Object(
			d.Field("body", d.Ref("Post")),
			d.Field("return", d.Ref("Post")),
		)).
		Action("DELETE /posts/:id", d.Object(
			d.Field("return", d.Boolean()),
		)))
	require.NoError(t, err)
	return app
}

type fixture struct {
	handler  *Handler
	server   *httptest.Server
	requests chan resolver.RequestInfo
	args     chan resolver.Args
	posts    chan any
	registry *prometheus.Registry
}

func newFixture(t testing.TB, engineOpts ...dispatch.Option) *fixture {
	t.Helper()
	f := &fixture{
		requests: make(chan resolver.RequestInfo, 10),
		args:     make(chan resolver.Args, 10),
		posts:    make(chan any, 1),
		registry: prometheus.NewRegistry(),
	}

	registry := resolver.New(
		resolver.Query("post", func(ctx *resolver.Context, args resolver.Args) (any, error) {
			f.requests <- ctx.Request
			return map[string]any{"id": args["id"], "title": "hello"}, nil
		}),
		resolver.Mutation("addPost", func(_ *resolver.Context, args resolver.Args) (any, error) {
			return map[string]any{"id": 2, "title": args["title"]}, nil
		}),
		resolver.Subscribe("postAdded", func(*resolver.Context, resolver.Args) (*resolver.Subscription, error) {
			return &resolver.Subscription{C: f.posts}, nil
		}),
		resolver.Action("GET /posts/:id", func(_ *resolver.Context, args resolver.Args) (any, error) {
			f.args <- args
			return map[string]any{"id": args.Map("params")["id"], "title": "hello"}, nil
		}),
		resolver.Action("POST /posts", func(_ *resolver.Context, args resolver.Args) (any, error) {
			if args.Map("body")["title"] == "boom" {
				return nil, errors.New("database is down")
			}
			return args["body"], nil
		}),
	)

	engineOpts = append(engineOpts, dispatch.WithObserver(metrics.NewObserver(f.registry)))
	engine := dispatch.New(registry, engineOpts...)
	app := blogApp(t)
	b := schema.NewBuilder(app, registry, schema.WithEngine(engine))
	result, err := b.Build()
	require.NoError(t, err)

	f.handler, err = NewHandler(Options{
		Schema:  result.Schema,
		Engine:  engine,
		Actions: b.Actions(),
		App:     app,
		Metrics: f.registry,
	})
	require.NoError(t, err)

	f.server = httptest.NewServer(f.handler)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 {
		json.Unmarshal(data, &out)
	}
	return resp, out
}

func TestHandler_GraphQLPost(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "POST", GraphQLPath, `{"query":"{ post(id: 1) { id title } }"}`,
		http.Header{"Content-Type": {"application/json"}, middleware.RequestIDHeader: {"req-1"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-1", resp.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, map[string]any{"post": map[string]any{"id": 1.0, "title": "hello"}}, body["data"])

	req := <-f.requests
	assert.Equal(t, "req-1", req.ID)
	assert.NotEmpty(t, req.RemoteAddr)
	assert.NotNil(t, req.HTTP)
}

func TestHandler_GraphQLGet(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", GraphQLPath+"?query="+url.QueryEscape(`{ post(id: 3) { id } }`), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"post": map[string]any{"id": 3.0}}, body["data"])

	resp, _ = f.do(t, "GET", GraphQLPath+"?query="+url.QueryEscape(`mutation { addPost(title: "x") { id } }`), "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, body = f.do(t, "POST", GraphQLPath, `mutation { addPost(title: "x") { title } }`,
		http.Header{"Content-Type": {"application/graphql"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"addPost": map[string]any{"title": "x"}}, body["data"])
}

func TestHandler_GraphQLBadRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		message string
	}{
		{"invalid json", "POST", GraphQLPath, `{`, "body must be a JSON GraphQL request"},
		{"missing query", "POST", GraphQLPath, `{}`, "query is required"},
		{"invalid variables", "GET", GraphQLPath + "?query=x&variables=nope", "", "variables must be a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			errs := body["errors"].([]any)
			assert.Equal(t, tt.message, errs[0].(map[string]any)["message"])
		})
	}
}

func TestHandler_Actions(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", "/posts/7?verbose=true", "", http.Header{"Tenant": {"acme"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": 7.0, "title": "hello"}, body)
	assert.Equal(t, resolver.Args{
		"params":  map[string]any{"id": 7.0},
		"query":   map[string]any{"verbose": true},
		"headers": map[string]any{"tenant": "acme"},
	}, <-f.args)

	resp, body = f.do(t, "POST", "/posts", `{"id": 5, "title": "new"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": 5.0, "title": "new"}, body)
}

func TestHandler_ActionErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header http.Header
		status int
		code   string
	}{
		{"missing header", "GET", "/posts/7", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"bad path param", "GET", "/posts/seven", "", http.Header{"Tenant": {"acme"}}, http.StatusBadRequest, "invalid_argument"},
		{"bad query param", "GET", "/posts/7?verbose=maybe", "", http.Header{"Tenant": {"acme"}}, http.StatusBadRequest, "invalid_argument"},
		{"missing body", "POST", "/posts", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"resolver failure", "POST", "/posts", `{"title": "boom"}`, nil, http.StatusInternalServerError, "internal"},
		{"no resolver", "DELETE", "/posts/7", "", nil, http.StatusNotImplemented, "not_implemented"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body, tt.header)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["error"].(map[string]any)["code"])
		})
	}

	_, body := f.do(t, "POST", "/posts", `{"title": "boom"}`, nil)
	assert.NotContains(t, body["error"].(map[string]any)["message"], "database")
}

func TestHandler_ActionRateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucketWithConfig(ratelimit.TokenBucketConfig{Capacity: 1, RefillRate: time.Hour})
	f := newFixture(t, dispatch.WithRateLimit(ratelimit.NewGuard(limiter)))
	header := http.Header{"Tenant": {"acme"}}

	resp, _ := f.do(t, "GET", "/posts/1", "", header)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, "GET", "/posts/1", "", header)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "resource_exhausted", body["error"].(map[string]any)["code"])
}

func TestHandler_OpenAPIAndHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", OpenAPIPath, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "blog", body["info"].(map[string]any)["title"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/posts/{id}")
	assert.Contains(t, paths, "/posts")

	resp, body = f.do(t, "GET", HealthPath, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestHandler_Metrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", GraphQLPath, `{"query":"{ post(id: 1) { id } }"}`, nil)

	resp, err := http.Get(f.server.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "typegraph_field_invocations_total")
}

func TestHandler_Subscriptions(t *testing.T) {
	f := newFixture(t)

	dialer := gws.Dialer{Subprotocols: []string{websocket.Protocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+SubscriptionsPath, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg websocket.Message
	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.MsgConnectionInit}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.MsgConnectionAck, msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":      "1",
		"type":    websocket.MsgSubscribe,
		"payload": map[string]any{"query": "subscription { postAdded { title } }"},
	}))
	f.posts <- map[string]any{"id": 1, "title": "live"}

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.MsgNext, msg.Type)
	assert.JSONEq(t, `{"data":{"postAdded":{"title":"live"}}}`, string(msg.Payload))

	// queries run over the socket too
	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":      "2",
		"type":    websocket.MsgSubscribe,
		"payload": map[string]any{"query": "{ post(id: 4) { id } }"},
	}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "2", msg.ID)
	assert.Equal(t, websocket.MsgNext, msg.Type)
	assert.JSONEq(t, `{"data":{"post":{"id":4}}}`, string(msg.Payload))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.MsgComplete, msg.Type)

	require.NoError(t, f.handler.Shutdown(context.Background()))
}

func TestRoutePattern(t *testing.T) {
	assert.Equal(t, "/posts/{id}/comments/{commentId}", routePattern("/posts/:id/comments/:commentId"))
	assert.Equal(t, "/posts", routePattern("/posts"))
}

func TestNewHandler_RequiresSchema(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)
}
