// Package router decides which database alias serves a database operation.
//
// Writes and schema changes always go to the primary. Reads go to the
// replicas in round-robin order, unless the Pinning router finds the unit
// of work pinned or already written, in which case they go to the primary
// as well.
package router

import (
	"context"

	"github.com/FairForge/multidb/internal/pinning"
	"github.com/FairForge/multidb/internal/replica"
)

// DefaultAlias is the conventional primary alias.
const DefaultAlias = "default"

// Operation kinds reported to an Observer.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// Hint describes the operation being routed. Routers do not interpret it.
type Hint struct {
	Model  string
	Values map[string]any
}

// Router is what the data layer asks before each database operation.
type Router interface {
	// DBForRead returns the alias to read from.
	DBForRead(ctx context.Context, hint Hint) string
	// DBForWrite returns the alias to write to.
	DBForWrite(ctx context.Context, hint Hint) string
	// AllowRelation reports whether two objects may be related.
	AllowRelation(a, b Hint) bool
	// AllowMigrate reports whether schema changes for app may run on alias.
	AllowMigrate(alias, app string) bool
}

// Observer is told about every routing decision.
type Observer interface {
	ObserveRoute(op, alias string)
}

// Replica sends every read to a replica and every write to the primary.
type Replica struct {
	primary  string
	replicas *replica.Selector
	observer Observer
}

// enforce compilation error
var _ Router = (*Replica)(nil)

// NewReplica creates a Replica router. The primary alias is taken from
// the selector.
func NewReplica(replicas *replica.Selector) *Replica {
	return &Replica{
		primary:  replicas.Primary(),
		replicas: replicas,
	}
}

// SetObserver installs o. Call before the router is shared.
func (r *Replica) SetObserver(o Observer) {
	r.observer = o
}

// Primary returns the primary alias.
func (r *Replica) Primary() string {
	return r.primary
}

// DBForRead returns the next replica.
func (r *Replica) DBForRead(_ context.Context, _ Hint) string {
	return r.observe(OpRead, r.replicas.Next())
}

// DBForWrite returns the primary.
func (r *Replica) DBForWrite(_ context.Context, _ Hint) string {
	return r.observe(OpWrite, r.primary)
}

// AllowRelation allows every relation; cross-database checks are left to
// the data layer.
func (r *Replica) AllowRelation(_, _ Hint) bool {
	return true
}

// AllowMigrate only allows schema changes on the primary.
func (r *Replica) AllowMigrate(alias, _ string) bool {
	return alias == r.primary
}

func (r *Replica) observe(op, alias string) string {
	if r.observer != nil {
		r.observer.ObserveRoute(op, alias)
	}
	return alias
}

// Pinning is a Replica router that reads from the primary while the unit
// of work is pinned.
type Pinning struct {
	*Replica
}

// enforce compilation error
var _ Router = (*Pinning)(nil)

// NewPinning creates a Pinning router.
func NewPinning(replicas *replica.Selector) *Pinning {
	return &Pinning{Replica: NewReplica(replicas)}
}

// DBForRead returns the primary when ctx is pinned or wrote earlier in the
// unit of work, the next replica otherwise. Reads sent to the primary do
// not advance the replica cursor.
func (p *Pinning) DBForRead(ctx context.Context, hint Hint) string {
	if pinning.ReadsPrimary(ctx) {
		return p.observe(OpRead, p.primary)
	}
	return p.Replica.DBForRead(ctx, hint)
}
