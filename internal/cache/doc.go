// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package cache provides the small in-memory data structures the engine
// leans on: a bucketed sliding-window counter for rolling success/failure
// tallies and a TTL-bounded LRU map for per-device bookkeeping.
package cache
