// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package models defines the core data types shared across the engine:
// devices, position records, sync cursors, vehicle states, and the
// status/snapshot types exposed by the engine surface.
//
// All types are plain data carriers. Behavior (validation, classification,
// deduplication) lives in internal/sync and internal/validation.
package models
