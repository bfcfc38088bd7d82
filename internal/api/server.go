// SPDX-License-Identifier: MIT

// Package api exposes the HTTP ingestion and status surface. Joining
// is a race for the single admission slot; everything else is
// read-only observation of session state.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meetkit/botd/internal/domain/session/runner"
	"github.com/meetkit/botd/internal/domain/session/store"
)

// Server wires the session manager and status store to the HTTP surface.
type Server struct {
	manager *runner.Manager
	store   store.StatusStore

	// rateLimit is requests per remote IP per minute; zero disables.
	rateLimit int

	// ready flips once the daemon's dependencies are wired; readyz
	// reports 503 until then.
	ready func() bool
}

// NewServer builds the API server. ready may be nil, in which case the
// daemon is considered ready as soon as the listener is up.
func NewServer(m *runner.Manager, st store.StatusStore, rateLimit int, ready func() bool) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{manager: m, store: st, rateLimit: rateLimit, ready: ready}
}

// Router assembles the full route tree with the canonical middleware
// stack applied.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Post("/sessions", s.handleJoin)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{correlationID}", s.handleGetSession)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// HTTPServer wraps the router in an http.Server with sane timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
