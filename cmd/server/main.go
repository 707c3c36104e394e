// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package main is the entry point for the Fleetsync server.
//
// Fleetsync is an adaptive synchronization engine for vehicle telemetry: it
// polls a rate-limited remote telemetry API for device positions, classifies
// each vehicle's motion state, and adjusts per-device polling intervals so
// moving vehicles are tracked closely while parked ones barely cost budget.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: settings from environment variables and config files (Koanf v2)
//  2. Telemetry client: REST client for the remote telemetry backend
//  3. Sync engine: rate gate, circuit breaker, classifier, scheduler, state store
//  4. HTTP server: operational API (status, snapshot, refresh) and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Required settings:
//   - TELEMETRY_URL: backend base URL (e.g. https://telemetry.example.com)
//   - TELEMETRY_API_KEY: bearer token for the backend
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops the sync engine (in-flight fetches are discarded)
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//
// # Example Usage
//
//	export TELEMETRY_URL=https://telemetry.example.com
//	export TELEMETRY_API_KEY=your-api-key
//	./fleetsync
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fleetsync/internal/api"
	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/sync"
	"github.com/tomtom215/fleetsync/internal/telemetry"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("telemetry_url", cfg.Telemetry.URL).
		Dur("tick_interval", cfg.Engine.TickInterval).
		Int("rate_budget", cfg.RateGate.MaxRequests).
		Msg("Configuration loaded")

	client := telemetry.NewClient(cfg.Telemetry)
	engine := sync.NewEngine(*cfg, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start sync engine")
	}

	router := api.NewRouter(api.NewHandler(engine), cfg.Server)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	}

	cancel()
	if err := engine.Stop(); err != nil {
		logging.Warn().Err(err).Msg("Sync engine stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}
