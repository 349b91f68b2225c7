// internal/middleware/pinning.go
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/filters"
	"github.com/FairForge/multidb/internal/pinning"
)

// Defaults for the sticky cookie.
const (
	DefaultCookie = "multidb_pin_writes"
	DefaultWindow = 15 * time.Second
)

// Options configures a Pinner.
type Options struct {
	// Cookie names the sticky marker set after a write.
	Cookie string
	// Window is how long reads stay on the primary after a write.
	Window time.Duration
	Path   string
	Domain string

	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite

	// Policy decides which requests write. Defaults to filters.DefaultPolicy.
	Policy filters.Policy
	// Operation names the operation serving a request, for allow-list
	// filters. See MuxRouteName and ChiRoutePattern.
	Operation func(*http.Request) string
}

func (o *Options) applyDefaults() {
	if o.Cookie == "" {
		o.Cookie = DefaultCookie
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.Policy == nil {
		o.Policy = filters.DefaultPolicy()
	}
}

// Observer is told about pin decisions.
type Observer interface {
	ObservePin(reason string)
	ObservePinCookie()
}

// Pinner attaches a fresh pin state to every request and keeps a client on
// the primary for a while after it writes.
type Pinner struct {
	opts     Options
	logger   *zap.Logger
	observer Observer
}

// New creates a Pinner.
func New(opts Options, logger *zap.Logger) *Pinner {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pinner{opts: opts, logger: logger}
}

// SetObserver installs o. Call before serving.
func (p *Pinner) SetObserver(o Observer) {
	p.observer = o
}

// Options returns the effective options.
func (p *Pinner) Options() Options {
	return p.opts
}

// Handler wraps next. Requests that write, by method or by operation, are
// pinned and will set the cookie; requests carrying the cookie are pinned
// without refreshing it; every other request starts unpinned.
func (p *Pinner) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := pinning.NewContext(r.Context())
		state := pinning.FromContext(ctx)
		r = r.WithContext(ctx)

		in := p.input(r)
		switch {
		case p.opts.Policy.ShouldPin(in):
			state.Pin(pinning.ReasonMethod)
		case filters.Marker(in):
			state.Pin(pinning.ReasonMarker)
		default:
			// The state is new; unpin anyway so the decision is explicit.
			state.Unpin()
		}
		if reason := state.Reason(); reason != pinning.ReasonNone && p.observer != nil {
			p.observer.ObservePin(reason.String())
		}

		rw := &responseWriter{ResponseWriter: w, pinner: p, state: state}
		next.ServeHTTP(rw, r)
		if !rw.wroteHeader {
			rw.finish()
		}
	})
}

func (p *Pinner) input(r *http.Request) filters.Input {
	in := filters.Input{Method: r.Method}
	if _, err := r.Cookie(p.opts.Cookie); err == nil {
		in.HasMarker = true
	}
	if p.opts.Operation != nil {
		in.Operation = p.opts.Operation(r)
	}
	return in
}

func (p *Pinner) cookie() *http.Cookie {
	maxAge := int(p.opts.Window / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     p.opts.Cookie,
		Value:    "y",
		Path:     p.opts.Path,
		Domain:   p.opts.Domain,
		MaxAge:   maxAge,
		Secure:   p.opts.Secure,
		HttpOnly: p.opts.HTTPOnly,
		SameSite: p.opts.SameSite,
	}
}

// Status writes "pinned" or "not pinned" for the request's unit of work.
func Status(w http.ResponseWriter, r *http.Request) {
	result := "not pinned"
	if pinning.IsPinned(r.Context()) {
		result = "pinned"
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(result))
}
