// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package sync implements the adaptive telemetry synchronization engine.
//
// The engine polls a rate-limited remote telemetry API for device positions
// through a narrow collaborator interface (TelemetryClient) and fans results
// out to in-process subscribers. It is built from small cooperating pieces:
//
//   - RateGate: sliding-window request budget (default 30 per rolling 60s)
//   - BreakerClient: circuit breaker around the collaborator (sony/gobreaker)
//   - Classifier: per-device motion-state machine with hysteresis
//   - IntervalController: global load/failure-adaptive interval + backoff
//   - RecordValidator: range/staleness validation, speed clamping, dedup
//   - StateStore: latest-per-device snapshot, cursor, counters
//   - Engine: the tick-driven orchestrator tying it all together
//
// Concurrency model: one goroutine (the tick loop) owns all mutable engine
// state. Network fetches are the only suspension points and pass through
// singleflight, so identical concurrent fetches share one pending result.
// Cursor advances are ordered by fetch completion; the cursor never
// regresses.
package sync
