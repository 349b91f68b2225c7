// internal/middleware/writer.go
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/pinning"
)

// responseWriter sets the sticky cookie before the first byte goes out,
// since headers can not change after that.
type responseWriter struct {
	http.ResponseWriter
	pinner      *Pinner
	state       *pinning.State
	dbWrite     bool
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.finish()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *responseWriter) markDBWrite() {
	w.dbWrite = true
	w.state.MarkWritten()
}

func (w *responseWriter) finish() {
	if !w.dbWrite && !w.state.Written() {
		return
	}
	http.SetCookie(w.ResponseWriter, w.pinner.cookie())
	if w.pinner.observer != nil {
		w.pinner.observer.ObservePinCookie()
	}
	w.pinner.logger.Debug("pinning client to primary",
		zap.String("unit_of_work", w.state.ID()),
		zap.Stringer("reason", w.state.Reason()),
		zap.Duration("window", w.pinner.opts.Window))
}

type dbWriteMarker interface {
	markDBWrite()
}

// MarkDBWrite flags the response as having written to the database, so the
// sticky cookie is set even for a read-only method. It reports false if w
// is not served through a Pinner.
func MarkDBWrite(w http.ResponseWriter) bool {
	for {
		switch x := w.(type) {
		case dbWriteMarker:
			x.markDBWrite()
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = x.Unwrap()
		default:
			return false
		}
	}
}

// DBWrite marks every response of h as a database write. Reads inside h go
// to the primary.
func DBWrite(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !MarkDBWrite(w) {
			pinning.MarkWritten(r.Context())
		}
		h.ServeHTTP(w, r)
	})
}

// UsePrimary serves h inside a pinning.UsePrimary scope. Unlike DBWrite it
// does not set the sticky cookie.
func UsePrimary(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, exit := pinning.UsePrimary.Enter(r.Context())
		defer exit()
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MuxRouteName names the operation by its gorilla/mux route name. Install
// the Pinner with Router.Use so the route is matched first.
func MuxRouteName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// ChiRoutePattern names the operation by its chi route pattern. Install the
// Pinner with Router.With on the route so the pattern is known.
func ChiRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
