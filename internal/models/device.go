// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package models

import "time"

// Device is a tracked physical unit with a stable identifier.
// The device list is refreshed wholesale from the remote API; identity
// (ID) is immutable across refreshes, everything else may change.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GroupID    string    `json:"group_id,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// VehicleState is the classified motion state of a device, inferred from
// its position reports. States order by polling priority: a MOVING vehicle
// is polled most aggressively, an OFFLINE one least.
type VehicleState int

const (
	StateMoving VehicleState = iota
	StateIdling
	StateParked
	StateOffline
)

// String returns the lowercase state name used in logs and metrics labels.
func (s VehicleState) String() string {
	switch s {
	case StateMoving:
		return "moving"
	case StateIdling:
		return "idling"
	case StateParked:
		return "parked"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Priority returns the batching priority rank. Lower is more urgent.
func (s VehicleState) Priority() int {
	return int(s)
}

// MarshalJSON encodes the state as its string name.
func (s VehicleState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
