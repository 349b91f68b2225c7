package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

var (
	ErrUnknownAlias      = errors.New("unknown database alias")
	ErrMigrateNotAllowed = errors.New("schema changes are not allowed on this database")
)

// Registry maps database aliases to open handles.
type Registry struct {
	mu      sync.RWMutex
	dbs     map[string]*sql.DB
	mirrors map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		dbs:     make(map[string]*sql.DB),
		mirrors: make(map[string]string),
	}
}

// Add registers db under alias, replacing any previous handle.
func (r *Registry) Add(alias string, db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs[alias] = db
}

// MirrorReplicas makes every replica alias resolve to the primary's
// handle, so tests see their own writes through replica reads.
func (r *Registry) MirrorReplicas(primary string, replicas []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range replicas {
		if alias != primary {
			r.mirrors[alias] = primary
		}
	}
}

// MirrorOf returns the alias that alias mirrors, if any.
func (r *Registry) MirrorOf(alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mirrors[alias]
	return m, ok
}

// DB returns the handle serving alias.
func (r *Registry) DB(alias string) (*sql.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.mirrors[alias]; ok {
		alias = m
	}
	db, ok := r.dbs[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}
	return db, nil
}

// Aliases returns the registered aliases, sorted.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.dbs))
	for alias := range r.dbs {
		ret = append(ret, alias)
	}
	sort.Strings(ret)
	return ret
}

// Ping checks every registered handle.
func (r *Registry) Ping(ctx context.Context) error {
	var err error
	for _, alias := range r.Aliases() {
		db, dbErr := r.DB(alias)
		if dbErr == nil {
			dbErr = db.PingContext(ctx)
		}
		if dbErr != nil {
			err = multierr.Append(err, fmt.Errorf("ping %q: %w", alias, dbErr))
		}
	}
	return err
}

// Close closes every registered handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for alias, db := range r.dbs {
		if cerr := db.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %q: %w", alias, cerr))
		}
	}
	r.dbs = make(map[string]*sql.DB)
	return err
}
