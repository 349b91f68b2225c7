package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/pinning"
	"github.com/FairForge/multidb/internal/router"
)

// Routed runs queries on the database its router picks.
type Routed struct {
	router   router.Router
	registry *Registry
	logger   *zap.Logger
}

// NewRouted creates a Routed.
func NewRouted(r router.Router, reg *Registry, logger *zap.Logger) *Routed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Routed{router: r, registry: reg, logger: logger}
}

// Reader returns the handle to read from.
func (d *Routed) Reader(ctx context.Context, hint router.Hint) (*sql.DB, error) {
	return d.registry.DB(d.router.DBForRead(ctx, hint))
}

// Writer returns the handle to write to.
func (d *Routed) Writer(ctx context.Context, hint router.Hint) (*sql.DB, error) {
	return d.registry.DB(d.router.DBForWrite(ctx, hint))
}

// QueryContext runs a read query.
func (d *Routed) QueryContext(ctx context.Context, hint router.Hint, query string, args ...any) (*sql.Rows, error) {
	db, err := d.Reader(ctx, hint)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a read query expected to return at most one row.
// Routing errors surface from Scan.
func (d *Routed) QueryRowContext(ctx context.Context, hint router.Hint, dest []any, query string, args ...any) error {
	db, err := d.Reader(ctx, hint)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

// ExecContext runs a write on the primary. A successful write marks the
// unit of work written, so its later reads stay on the primary.
func (d *Routed) ExecContext(ctx context.Context, hint router.Hint, query string, args ...any) (sql.Result, error) {
	db, err := d.Writer(ctx, hint)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	pinning.MarkWritten(ctx)
	return res, nil
}

// Migrate runs schema statements for app on alias, if the router allows
// schema changes there.
func (d *Routed) Migrate(ctx context.Context, alias, app string, stmts ...string) error {
	if !d.router.AllowMigrate(alias, app) {
		return fmt.Errorf("%w: %q", ErrMigrateNotAllowed, alias)
	}
	db, err := d.registry.DB(alias)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", alias, err)
		}
	}
	d.logger.Info("migrated", zap.String("alias", alias), zap.String("app", app), zap.Int("statements", len(stmts)))
	return nil
}
