// internal/pinning/guard.go
package pinning

import (
	"context"
	"sync"

	"github.com/FairForge/multidb/internal/deprecation"
)

// Guard forces the pin state of a unit of work for the duration of a
// scope and restores the previous state when the scope exits, on every
// exit path. Guards nest.
type Guard struct {
	pinned bool
	reason Reason
}

var (
	// UsePrimary sends every read inside the scope to the primary.
	UsePrimary = Guard{pinned: true, reason: ReasonGuard}

	// UseReplica lets reads inside the scope go to replicas, even if the
	// unit of work is pinned outside it.
	UseReplica = Guard{pinned: false, reason: ReasonNone}
)

// UseMaster is the old name of UsePrimary.
//
// Deprecated: use UsePrimary.
func UseMaster() Guard {
	deprecation.Warn("pinning.UseMaster", "UseMaster is deprecated, use UsePrimary")
	return UsePrimary
}

// Pinned reports whether the guard forces the primary.
func (g Guard) Pinned() bool {
	return g.pinned
}

// Enter opens a scope. The returned context carries the unit-of-work
// state, created if ctx had none, and must be used inside the scope. The
// returned exit restores the state to what it was before Enter; calling it
// more than once has no further effect.
//
//	ctx, exit := pinning.UsePrimary.Enter(ctx)
//	defer exit()
func (g Guard) Enter(ctx context.Context) (context.Context, func()) {
	ctx, s := Ensure(ctx)
	depth := s.push(g.pinned, g.reason)

	var once sync.Once
	return ctx, func() {
		once.Do(func() { s.pop(depth) })
	}
}

// Do runs fn inside the scope. The state is restored before Do returns,
// also when fn panics; fn's error is returned unchanged.
func (g Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	ctx, exit := g.Enter(ctx)
	defer exit()
	return fn(ctx)
}

// Wrap returns fn bracketed by the guard on every call.
func (g Guard) Wrap(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return g.Do(ctx, fn)
	}
}

// Call runs fn inside g's scope and returns its result.
func Call[T any](ctx context.Context, g Guard, fn func(context.Context) (T, error)) (T, error) {
	ctx, exit := g.Enter(ctx)
	defer exit()
	return fn(ctx)
}
