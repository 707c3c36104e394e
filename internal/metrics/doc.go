// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package metrics declares the Prometheus collectors used across the engine.
// All collectors are registered with the default registry via promauto and
// exposed by the /metrics endpoint in cmd/server.
package metrics
