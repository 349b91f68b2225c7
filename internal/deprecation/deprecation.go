// Package deprecation emits one warning per renamed configuration key or
// API name, however often the old name is used.
package deprecation

import (
	"sync"

	"go.uber.org/zap"
)

// Registry remembers which deprecation keys already warned.
type Registry struct {
	mu     sync.Mutex
	logger *zap.Logger
	seen   map[string]struct{}
}

// NewRegistry creates a registry logging through logger. A nil logger
// falls back to zap.L() at warning time.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Warn logs msg once for key. It reports whether this call logged.
func (r *Registry) Warn(key, msg string, fields ...zap.Field) bool {
	r.mu.Lock()
	if _, ok := r.seen[key]; ok {
		r.mu.Unlock()
		return false
	}
	r.seen[key] = struct{}{}
	logger := r.logger
	r.mu.Unlock()

	if logger == nil {
		logger = zap.L()
	}
	logger.Warn(msg, append([]zap.Field{zap.String("deprecated", key)}, fields...)...)
	return true
}

// Seen reports whether key already warned.
func (r *Registry) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[key]
	return ok
}

// SetLogger replaces the logger used for later warnings.
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Reset forgets every key.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]struct{})
}

var std = NewRegistry(nil)

// Warn logs msg once per process for key.
func Warn(key, msg string, fields ...zap.Field) bool {
	return std.Warn(key, msg, fields...)
}

// Seen reports whether key already warned in the process-wide registry.
func Seen(key string) bool {
	return std.Seen(key)
}

// SetLogger sets the logger of the process-wide registry.
func SetLogger(logger *zap.Logger) {
	std.SetLogger(logger)
}

// Reset clears the process-wide registry. Tests use it.
func Reset() {
	std.Reset()
}
