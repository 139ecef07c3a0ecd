// Package app assembles a runnable server from compiled application
// metadata and a resolver registry.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/internal/cli/config"
	"github.com/conduit-lang/typegraph/internal/orm"
	"github.com/conduit-lang/typegraph/internal/web/middleware"
	"github.com/conduit-lang/typegraph/internal/web/profiling"
	"github.com/conduit-lang/typegraph/internal/web/server"
	"github.com/conduit-lang/typegraph/runtime/crud"
	"github.com/conduit-lang/typegraph/runtime/dispatch"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/metrics"
	"github.com/conduit-lang/typegraph/runtime/pubsub"
	"github.com/conduit-lang/typegraph/runtime/ratelimit"
	"github.com/conduit-lang/typegraph/runtime/resolver"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

// App is an assembled application. Close releases everything New opened.
type App struct {
	Metadata *metadata.Application
	Registry *resolver.Registry
	Handler  *server.Handler
	Store    *orm.Store // nil without a database URL
	Broker   pubsub.Broker
	Metrics  *prometheus.Registry
	CRUD     *crud.Report // nil when the extension is off

	config  *config.Config
	logger  *zap.Logger
	redis   redis.UniversalClient
	closers []func() error
}

// New wires persistence, the CRUD extension, pub/sub, rate limiting,
// metrics, the GraphQL schema and the HTTP handler. registry may be nil
// when every root is served by the CRUD extension.
func New(ctx context.Context, cfg *config.Config, md *metadata.Application, registry *resolver.Registry, logger *zap.Logger) (_ *App, err error) {
	if md == nil {
		return nil, errors.New("application metadata is required")
	}
	if registry == nil {
		registry = resolver.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		Metadata: md,
		Registry: registry,
		Metrics:  prometheus.NewRegistry(),
		config:   cfg,
		logger:   logger,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.redis = client
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if err := a.openBroker(); err != nil {
		return nil, err
	}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	if a.Store != nil && cfg.CRUD.Enabled {
		a.CRUD, err = crud.Extend(md, registry, a.Store,
			crud.WithDepth(cfg.CRUD.Depth),
			crud.WithBroker(a.Broker),
			crud.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	guard, err := a.rateLimit()
	if err != nil {
		return nil, err
	}

	a.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engine := dispatch.New(registry,
		dispatch.WithLogger(logger),
		dispatch.WithApplication(md),
		dispatch.WithRateLimit(guard),
		dispatch.WithObserver(metrics.NewObserver(a.Metrics)))

	opts := []schema.Option{
		schema.WithEngine(engine),
		schema.WithBroker(a.Broker),
		schema.WithLogger(logger),
	}
	if a.Store != nil {
		opts = append(opts, schema.WithPersistence(a.Store))
	}
	builder := schema.NewBuilder(md, registry, opts...)
	result, err := builder.Build()
	if err != nil {
		return nil, err
	}

	handlerOpts := server.Options{
		Schema:      result.Schema,
		Engine:      builder.Engine(),
		Actions:     builder.Actions(),
		App:         md,
		Metrics:     a.Metrics,
		GraphQLPath: cfg.Server.GraphQLPath,
		Logger:      logger,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		handlerOpts.CORS = &cors
	}
	if cfg.Server.Profiling {
		handlerOpts.Profiling = profiling.DefaultConfig()
	}
	a.Handler, err = server.NewHandler(handlerOpts)
	if err != nil {
		return nil, err
	}

	logger.Info("application ready",
		zap.String("app", md.Name),
		zap.Int("queries", len(md.Queries)),
		zap.Int("mutations", len(md.Mutations)),
		zap.Int("subscriptions", len(md.Subscriptions)),
		zap.Int("actions", len(md.Actions)),
		zap.Bool("persistence", a.Store != nil))
	return a, nil
}

func (a *App) openBroker() error {
	if a.redis == nil {
		hub := pubsub.NewHub(pubsub.WithLogger(a.logger))
		a.Broker = hub
		a.closers = append(a.closers, hub.Close)
		return nil
	}
	broker, err := pubsub.NewRedisBroker(pubsub.RedisBrokerConfig{
		Client: a.redis,
		Prefix: a.Metadata.Name + ":",
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	a.Broker = broker
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	db := a.config.Database
	if db.URL == "" {
		return nil
	}
	store, err := orm.Open(db.Driver, db.URL, a.Metadata, orm.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	n, err := store.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	a.logger.Info("database ready", zap.String("driver", db.Driver), zap.Int("migrations", n))
	return nil
}

func (a *App) rateLimit() (*ratelimit.Guard, error) {
	rl := a.config.RateLimit
	if !rl.Enabled {
		return nil, nil
	}
	if rl.Backend == "redis" {
		if a.redis == nil {
			return nil, errors.New("redis rate limiting requires redis.addr")
		}
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			Client: a.redis,
			Limit:  rl.Limit,
			Window: rl.Window,
			Prefix: a.Metadata.Name + ":ratelimit:",
		})
		if err != nil {
			return nil, err
		}
		return ratelimit.NewGuard(limiter), nil
	}
	return ratelimit.NewGuard(ratelimit.NewTokenBucketWithConfig(ratelimit.TokenBucketConfig{
		Capacity:   rl.Limit,
		RefillRate: rl.Window,
	})), nil
}

// Run serves until ctx ends or a termination signal arrives, then drains
// open connections and closes the app.
func (a *App) Run(ctx context.Context) error {
	srv, err := server.New(a.ServerConfig())
	if err != nil {
		return err
	}
	gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: a.config.Server.ShutdownTimeout,
		Logger:  a.logger,
	})
	gs.RegisterHook(a.Handler.Shutdown)

	err = gs.Run(ctx)
	return errors.Join(err, a.Close())
}

// ServerConfig returns the HTTP server configuration for the handler
func (a *App) ServerConfig() *server.Config {
	sc := server.DefaultConfig(a.Handler)
	sc.Address = a.config.Address()
	return sc
}

// Close releases the store, the broker and the Redis client, in reverse
// order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
