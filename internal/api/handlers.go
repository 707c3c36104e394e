// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/sync"
)

// Handler serves the operational endpoints backed by the sync engine.
type Handler struct {
	engine *sync.Engine
}

// NewHandler creates a handler for the given engine.
func NewHandler(engine *sync.Engine) *Handler {
	return &Handler{engine: engine}
}

// writeJSON encodes v as the response body, logging encode failures.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness. Always 200 while the process serves traffic;
// degraded sync state is visible in /api/v1/status, not here.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status returns the engine's true current state, breaker and rate budget
// included.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Snapshot returns the last-known-good fleet state. Served from the store,
// so it keeps answering during backend outages.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// Refresh triggers a manual fetch: ?kind=devices or ?kind=positions
// (default). Still subject to the rate gate and circuit breaker; denials
// surface as HTTP errors rather than silent skips.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	kind := sync.RefreshPositions
	if k := r.URL.Query().Get("kind"); k != "" {
		kind = sync.RefreshKind(k)
	}

	err := h.engine.Refresh(r.Context(), kind)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "kind": string(kind)})
	case errors.Is(err, sync.ErrEmergencyStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, sync.ErrAuth):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	}
}

// EmergencyStop forces a polling cooldown: ?duration=10m (default 5m).
func (h *Handler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	d := 5 * time.Minute
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid duration"})
			return
		}
		d = parsed
	}
	h.engine.EmergencyStop(d)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "duration": d.String()})
}

// Resume lifts an emergency stop.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.engine.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}
