// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package api exposes the engine's operational HTTP surface using the Chi
// router: health, status, snapshot, manual refresh, and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fleetsync/internal/config"
)

// Router wires the engine handlers into an HTTP mux.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter creates a router for the given engine handler.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Health endpoint: permissive rate limit so monitors can poll freely.
	r.With(httprate.LimitByIP(1000, router.cfg.RateLimitWindow)).
		Get("/healthz", router.handler.Health)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))

		r.Get("/status", router.handler.Status)
		r.Get("/snapshot", router.handler.Snapshot)
		r.Post("/refresh", router.handler.Refresh)
		r.Post("/emergency-stop", router.handler.EmergencyStop)
		r.Post("/resume", router.handler.Resume)
	})

	return r
}
