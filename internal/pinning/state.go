// internal/pinning/state.go
package pinning

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Reason records why a unit of work is pinned to the primary.
type Reason uint8

const (
	ReasonNone   Reason = iota // Not pinned.
	ReasonMarker               // The client carried the sticky marker from an earlier write.
	ReasonGuard                // Forced by a UsePrimary scope.
	ReasonMethod               // The request used a method or operation that writes.
	ReasonWrite                // The application performed or declared a database write.
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMarker:
		return "marker"
	case ReasonGuard:
		return "guard"
	case ReasonMethod:
		return "method"
	case ReasonWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Write reports whether pinning for r means the unit of work wrote.
func (r Reason) Write() bool {
	return r == ReasonMethod || r == ReasonWrite
}

type frame struct {
	pinned  bool
	reason  Reason
	replica bool
}

// State is the pin state of a single unit of work. The zero value is
// unpinned. A nil *State is valid: it reads as unpinned and ignores
// mutations.
//
// A write makes the state sticky: reads stay on the primary after a guard
// scope restores an unpinned frame, until Unpin or inside a UseReplica
// scope.
type State struct {
	mu      sync.Mutex
	id      string
	pinned  bool
	reason  Reason
	written bool
	sticky  bool
	replica bool // inside a UseReplica scope
	stack   []frame
}

// NewState returns a fresh unpinned state.
func NewState() *State {
	return &State{id: uuid.NewString()}
}

// ID identifies the unit of work in logs.
func (s *State) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// IsPinned reports whether reads must go to the primary.
func (s *State) IsPinned() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// Reason returns why the state is pinned, ReasonNone when it is not.
func (s *State) Reason() Reason {
	if s == nil {
		return ReasonNone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Pin sends all further reads of the unit of work to the primary. Pinning
// with a write reason also sets the written flag. ReasonNone pins as
// ReasonGuard.
func (s *State) Pin(reason Reason) {
	if s == nil {
		return
	}
	if reason == ReasonNone {
		reason = ReasonGuard
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = true
	s.reason = reason
	if reason.Write() {
		s.written = true
		s.sticky = true
	}
}

// Unpin lets reads go to replicas again, also after a write. Unpinning an
// unpinned state is a no-op. The written flag survives.
func (s *State) Unpin() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = false
	s.reason = ReasonNone
	s.sticky = false
}

// ReadsPrimary reports whether reads must go to the primary: the state is
// pinned, or it wrote and no UseReplica scope is open.
func (s *State) ReadsPrimary() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned || (s.sticky && !s.replica)
}

// MarkWritten records a database write. It pins the state with
// ReasonWrite and sets the written flag, which can not be cleared for the
// rest of the unit of work.
func (s *State) MarkWritten() {
	s.Pin(ReasonWrite)
}

// Written reports whether the unit of work wrote, by any means.
func (s *State) Written() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Depth returns the number of open guard scopes.
func (s *State) Depth() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// push saves the current pin and forces the target. It returns the depth
// of the new frame.
func (s *State) push(pinned bool, reason Reason) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, frame{pinned: s.pinned, reason: s.reason, replica: s.replica})
	s.pinned = pinned
	s.reason = reason
	s.replica = !pinned
	return len(s.stack)
}

// pop restores frames down to depth-1. Frames above depth belong to inner
// scopes that were never exited; they are discarded with it.
func (s *State) pop(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if depth < 1 || depth > len(s.stack) {
		return
	}
	f := s.stack[depth-1]
	s.stack = s.stack[:depth-1]
	s.pinned = f.pinned
	s.reason = f.reason
	s.replica = f.replica
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying a fresh unpinned state. Call
// it at the start of every unit of work.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, NewState())
}

// WithState returns a copy of ctx carrying s.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the state carried by ctx, or nil.
func FromContext(ctx context.Context) *State {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(contextKey{}).(*State)
	return s
}

// Ensure returns ctx and its state, attaching a fresh one if ctx has none.
func Ensure(ctx context.Context) (context.Context, *State) {
	if s := FromContext(ctx); s != nil {
		return ctx, s
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s := NewState()
	return WithState(ctx, s), s
}

// IsPinned reports whether the unit of work in ctx is pinned.
func IsPinned(ctx context.Context) bool {
	return FromContext(ctx).IsPinned()
}

// ReadsPrimary reports whether reads of the unit of work in ctx must go to
// the primary.
func ReadsPrimary(ctx context.Context) bool {
	return FromContext(ctx).ReadsPrimary()
}

// PinReason returns why the unit of work in ctx is pinned.
func PinReason(ctx context.Context) Reason {
	return FromContext(ctx).Reason()
}

// Pin pins the unit of work in ctx.
func Pin(ctx context.Context, reason Reason) {
	FromContext(ctx).Pin(reason)
}

// Unpin unpins the unit of work in ctx.
func Unpin(ctx context.Context) {
	FromContext(ctx).Unpin()
}

// MarkWritten records a database write for the unit of work in ctx.
func MarkWritten(ctx context.Context) {
	FromContext(ctx).MarkWritten()
}

// Written reports whether the unit of work in ctx wrote.
func Written(ctx context.Context) bool {
	return FromContext(ctx).Written()
}
