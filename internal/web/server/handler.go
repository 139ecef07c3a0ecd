package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/internal/openapi"
	"github.com/conduit-lang/typegraph/internal/web/middleware"
	"github.com/conduit-lang/typegraph/internal/web/profiling"
	"github.com/conduit-lang/typegraph/internal/web/websocket"
	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

// Default route paths
const (
	GraphQLPath       = "/graphql"
	SubscriptionsPath = "/subscriptions"
	OpenAPIPath       = "/openapi.json"
	MetricsPath       = "/metrics"
	HealthPath        = "/healthz"
)

// Options configures the HTTP handler
type Options struct {
	Schema  graphql.Schema
	Engine  *dispatch.Engine
	Actions []*schema.ActionHandler

	// App enables the OpenAPI document when it declares actions
	App *metadata.Application

	// Metrics enables the Prometheus endpoint
	Metrics prometheus.Gatherer

	// CORS is applied when set
	CORS *middleware.CORSConfig

	// Profiling mounts the pprof endpoints when set
	Profiling *profiling.Config

	// GraphQLPath overrides the default GraphQL endpoint path
	GraphQLPath string

	WebSocket *websocket.Config
	Logger    *zap.Logger
}

// Handler routes every endpoint of an application
type Handler struct {
	router chi.Router
	schema graphql.Schema
	engine *dispatch.Engine
	ws     *websocket.Handler
	logger *zap.Logger

	docOnce sync.Once
	doc     *openapi3.T
	docErr  error
}

// NewHandler builds the router
func NewHandler(opts Options) (*Handler, error) {
	if opts.Schema.QueryType() == nil {
		return nil, fmt.Errorf("a built schema is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("a dispatch engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GraphQLPath == "" {
		opts.GraphQLPath = GraphQLPath
	}

	h := &Handler{
		schema: opts.Schema,
		engine: opts.Engine,
		logger: opts.Logger,
	}
	h.ws = websocket.NewHandler(h.execute, opts.Logger, opts.WebSocket)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.Logging(opts.Logger, MetricsPath, HealthPath))
	if opts.CORS != nil {
		r.Use(middleware.CORS(*opts.CORS))
	}

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get(opts.GraphQLPath, h.serveGraphQL)
	r.Post(opts.GraphQLPath, h.serveGraphQL)
	r.Get(SubscriptionsPath, h.ws.ServeHTTP)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}
	if opts.App != nil && len(opts.App.Actions) > 0 {
		app := opts.App
		r.Get(OpenAPIPath, func(w http.ResponseWriter, r *http.Request) {
			h.serveOpenAPI(w, app)
		})
	}
	if opts.Profiling != nil {
		profiling.RegisterRoutes(r, opts.Profiling)
	}
	h.mountActions(r, opts.Actions)

	h.router = r
	return h, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Shutdown closes open websocket connections. It is meant to be registered
// as a shutdown hook.
func (h *Handler) Shutdown(context.Context) error {
	h.ws.Shutdown()
	return nil
}

func (h *Handler) serveOpenAPI(w http.ResponseWriter, app *metadata.Application) {
	h.docOnce.Do(func() {
		h.doc, h.docErr = openapi.Generate(app)
	})
	if h.docErr != nil {
		h.logger.Error("failed to generate openapi document", zap.Error(h.docErr))
		h.writeError(w, &Error{Code: CodeInternal, Message: "failed to generate openapi document"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.doc)
}
