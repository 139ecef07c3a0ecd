// Package orm stores IR models in a SQL database and exposes them to the
// CRUD extension as a persistence layer.
package orm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/internal/orm/codegen"
	ormcrud "github.com/conduit-lang/typegraph/internal/orm/crud"
	"github.com/conduit-lang/typegraph/internal/orm/dialect"
	"github.com/conduit-lang/typegraph/internal/orm/hooks"
	"github.com/conduit-lang/typegraph/internal/orm/migrate"
	"github.com/conduit-lang/typegraph/internal/orm/relationships"
	"github.com/conduit-lang/typegraph/internal/orm/schema"
	"github.com/conduit-lang/typegraph/runtime/crud"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is a SQL-backed crud.Persistence
type Store struct {
	db       *sql.DB
	dialect  dialect.Dialect
	registry *schema.Registry
	hooks    *hooks.Executor
	loader   *relationships.Loader
	logger   *zap.Logger

	mu    sync.Mutex
	repos map[string]*ormcrud.Repository
}

var _ crud.Persistence = (*Store)(nil)

// Open connects with a database/sql driver ("postgres", "pgx" or "sqlite3")
// and maps the models of app.
func Open(driver, dsn string, app *metadata.Application, opts ...Option) (*Store, error) {
	d, err := dialect.For(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.Name() == "sqlite3" {
		// every connection to an in-memory database is a new database
		db.SetMaxOpenConns(1)
	}

	s, err := New(db, d, app, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store over an open database
func New(db *sql.DB, d dialect.Dialect, app *metadata.Application, opts ...Option) (*Store, error) {
	registry, err := schema.FromMetadata(app)
	if err != nil {
		return nil, fmt.Errorf("failed to map models: %w", err)
	}

	s := &Store{
		db:       db,
		dialect:  d,
		registry: registry,
		hooks:    hooks.NewExecutor(),
		loader:   relationships.NewLoader(db, d, registry),
		logger:   zap.NewNop(),
		repos:    make(map[string]*ormcrud.Repository),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB { return s.db }

// Registry returns the entity mapping
func (s *Store) Registry() *schema.Registry { return s.registry }

// Hooks returns the executor write hooks are registered with
func (s *Store) Hooks() *hooks.Executor { return s.hooks }

// Migrate creates the tables of every entity that has not been migrated yet
// and returns the number of migrations applied.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	migrations, err := migrate.FromSchema(codegen.NewDDLGenerator(s.dialect, s.registry))
	if err != nil {
		return 0, err
	}
	return migrate.NewRunner(s.db, s.dialect, s.logger).Up(ctx, migrations)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HasMetadata(name string) bool {
	_, ok := s.registry.Get(name)
	return ok
}

func (s *Store) Metadata(name string) (*crud.EntityMetadata, error) {
	e, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("no entity for model %s", name)
	}

	md := &crud.EntityMetadata{Name: e.Name}
	for _, c := range e.Columns {
		md.Columns = append(md.Columns, crud.Column{Name: c.Name})
	}
	for _, r := range e.Relations {
		md.Relations = append(md.Relations, crud.Relation{
			Name:   r.Name,
			Target: r.Target,
			Many:   r.Kind == schema.HasMany,
		})
	}
	return md, nil
}

func (s *Store) Repository(name string) (crud.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo, ok := s.repos[name]; ok {
		return repo, nil
	}
	e, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("no entity for model %s", name)
	}
	repo := ormcrud.NewRepository(e, s.registry, s.db, s.dialect, s.hooks)
	s.repos[name] = repo
	return repo, nil
}

func (s *Store) LoadRelation(ctx context.Context, model, relation string, parents []any) ([]any, error) {
	return s.loader.Load(ctx, model, relation, parents)
}

// OnChange calls fn after every committed insert, update and remove
func (s *Store) OnChange(fn func(crud.Event)) {
	for hookType, eventType := range map[hooks.HookType]crud.EventType{
		hooks.AfterInsert: crud.EventInsert,
		hooks.AfterUpdate: crud.EventUpdate,
		hooks.AfterRemove: crud.EventRemove,
	} {
		eventType := eventType
		s.hooks.Register(hookType, &hooks.Hook{
			Fn: func(_ context.Context, entity string, record map[string]any) error {
				s.logger.Debug("entity changed",
					zap.String("entity", entity),
					zap.String("event", string(eventType)))
				fn(crud.Event{Model: entity, Type: eventType, Record: record})
				return nil
			},
		})
	}
}
