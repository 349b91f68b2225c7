package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DriverName is the database/sql driver used by OpenPostgres.
const DriverName = "postgres"

// OpenPostgres opens a PostgreSQL handle for cfg. The handle connects
// lazily; call Ping to check it.
func OpenPostgres(cfg Config) (*sql.DB, error) {
	cfg.ApplyDefaults()

	db, err := sql.Open(DriverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// OpenAll opens every configured alias into a new registry. On error the
// handles opened so far are closed.
func OpenAll(cfgs map[string]Config) (*Registry, error) {
	reg := NewRegistry()
	for alias, cfg := range cfgs {
		db, err := OpenPostgres(cfg)
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("database %q: %w", alias, err)
		}
		reg.Add(alias, db)
	}
	return reg, nil
}
