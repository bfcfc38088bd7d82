// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/domain/session/runner"
	"github.com/meetkit/botd/internal/domain/session/store"
	"github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/metrics"
)

const maxJoinBodyBytes = 64 << 10

// handleJoin races the request for the admission slot. 202 carries the
// correlation ID for status polling; 409 means a session is in flight.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJoinBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.New("malformed join request body"))
		return
	}

	correlationID, err := s.manager.TryStart(req)
	switch {
	case errors.Is(err, runner.ErrBusy):
		metrics.IncAdmissionReject("http")
		writeConflict(w, "a session is already in flight")
		return
	case errors.Is(err, runner.ErrStoreUnavailable):
		writeInternalError(w, "status store unavailable")
		return
	case err != nil:
		writeError(w, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("correlation_id", correlationID).
		Str("provider", string(req.Provider)).
		Msg("session admitted")
	writeJSON(w, http.StatusAccepted, map[string]string{"correlationId": correlationID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "correlationID")
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeInternalError(w, "status store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		writeInternalError(w, "status store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": recs})
}

// handleStatus reports the admission-gate snapshot. The snapshot may be
// stale by the time the caller reads it; it is advisory only.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"busy": s.manager.Busy()}
	if holder := s.manager.Holder(); holder != "" {
		resp["correlationId"] = holder
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
