// Package adminhttp serves the operational HTTP surface: health, metrics,
// and pprof, on a listener independent of the device connection.
package adminhttp

import (
	"context"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin HTTP surface: /healthz, /metrics, /debug/pprof/*.
type Server struct {
	router http.Handler
	ready  atomic.Bool
	srv    *http.Server
}

// New builds a Server. ready is reported healthy once SetReady(true) is
// called, typically after the greeting/version handshake completes.
func New() *Server {
	s := &Server{}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.router = r
	s.srv = &http.Server{Handler: r}
	return s
}

// SetReady flips the /healthz status.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListenAndServe runs the admin HTTP surface on addr until it errors or
// Shutdown is called, in which case it returns nil (matching
// http.Server.Shutdown's own convention for ErrServerClosed).
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the admin HTTP surface, unblocking
// ListenAndServe. s.srv is constructed in New, so this is always safe to
// call even before ListenAndServe, concurrently with it.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the underlying router for tests.
func (s *Server) Handler() http.Handler { return s.router }
