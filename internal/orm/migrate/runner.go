package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/internal/orm/codegen"
	"github.com/conduit-lang/typegraph/internal/orm/dialect"
)

// Runner executes migrations with transaction support
type Runner struct {
	db      *sql.DB
	tracker *Tracker
	logger  *zap.Logger
}

// NewRunner creates a new migration runner. logger may be nil.
func NewRunner(db *sql.DB, d dialect.Dialect, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:      db,
		tracker: NewTracker(db, d),
		logger:  logger,
	}
}

// Up applies every pending migration and returns how many were applied
func (r *Runner) Up(ctx context.Context, migrations []*Migration) (int, error) {
	if err := r.tracker.Initialize(ctx); err != nil {
		return 0, err
	}
	pending, err := r.tracker.Pending(ctx, migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Debug("no pending migrations")
		return 0, nil
	}

	for i, m := range pending {
		start := time.Now()
		if err := r.apply(ctx, m.Up, func(tx *sql.Tx) error { return r.tracker.Record(ctx, tx, m) }); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		r.logger.Info("applied migration",
			zap.String("name", m.Name),
			zap.Duration("took", time.Since(start)))
	}
	return len(pending), nil
}

// Down rolls back one applied migration
func (r *Runner) Down(ctx context.Context, m *Migration) error {
	if len(m.Down) == 0 {
		return fmt.Errorf("migration %s has no down migration", m.Name)
	}
	if err := r.apply(ctx, m.Down, func(tx *sql.Tx) error { return r.tracker.Remove(ctx, tx, m.Name) }); err != nil {
		return fmt.Errorf("rollback of %s failed: %w", m.Name, err)
	}
	r.logger.Info("rolled back migration", zap.String("name", m.Name))
	return nil
}

func (r *Runner) apply(ctx context.Context, stmts []string, record func(*sql.Tx) error) error {
	if len(stmts) == 0 {
		return errors.New("migration has no statements")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}
	if err := record(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FromSchema builds one create_<table> migration per entity, in entity name
// order.
func FromSchema(g *codegen.DDLGenerator) ([]*Migration, error) {
	var out []*Migration
	for _, e := range g.Entities() {
		create, err := g.GenerateCreateTable(e)
		if err != nil {
			return nil, err
		}
		out = append(out, &Migration{
			Name: "create_" + e.Table,
			Up:   append([]string{create}, g.GenerateForeignKeyIndexes(e)...),
			Down: []string{g.GenerateDropTable(e)},
		})
	}
	return out, nil
}
