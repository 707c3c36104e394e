// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package models

import "time"

// CircuitState mirrors the breaker state for the status surface.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// CacheStats summarizes the engine's record bookkeeping for Status().
type CacheStats struct {
	TrackedDevices   int   `json:"tracked_devices"`
	StoredPositions  int   `json:"stored_positions"`
	RecordsAccepted  int64 `json:"records_accepted"`
	RecordsRejected  int64 `json:"records_rejected"`
	RecordsDuplicate int64 `json:"records_duplicate"`
}

// EngineStatus is the snapshot returned by Engine.Status(). It always
// reflects the true breaker and rate-gate state, including during outages.
type EngineStatus struct {
	Polling           bool         `json:"polling"`
	EmergencyStopped  bool         `json:"emergency_stopped"`
	CircuitState      CircuitState `json:"circuit_state"`
	ActiveDeviceCount int          `json:"active_device_count"`
	RateBudgetLeft    int          `json:"rate_budget_left"`
	LastTick          time.Time    `json:"last_tick"`
	LastSync          time.Time    `json:"last_sync"`
	Cache             CacheStats   `json:"cache"`
}

// Snapshot is an immutable copy of the state store: the current device
// list, the latest position per device, and sync progress. Mutating a
// Snapshot never affects the store it was taken from.
type Snapshot struct {
	Devices    []Device         `json:"devices"`
	Positions  []PositionRecord `json:"positions"`
	Cursor     SyncCursor       `json:"cursor"`
	LastUpdate time.Time        `json:"last_update"`
}
