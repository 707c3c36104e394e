// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package models

import "time"

// MaxSpeedKmh is the upper bound applied to reported speeds. Readings above
// it are clamped, not rejected, so a glitching speed sensor does not cost us
// an otherwise valid fix.
const MaxSpeedKmh = 300.0

// PositionRecord is a single timestamped position observation for a device.
//
// Latitude/Longitude are validated with the validator/v10 built-in
// `latitude`/`longitude` range tags (−90..90 and −180..180). The timestamp
// window and speed clamping are enforced separately by the sync validator
// because they depend on wall-clock "now".
type PositionRecord struct {
	DeviceID  string  `json:"device_id" validate:"required"`
	Latitude  float64 `json:"lat" validate:"latitude"`
	Longitude float64 `json:"lon" validate:"longitude"`
	SpeedKmh  float64 `json:"speed_kmh"`
	Course    float64 `json:"course"`
	// Timestamp is the device-reported fix time in Unix milliseconds.
	Timestamp int64 `json:"timestamp" validate:"required"`
	Moving    bool  `json:"moving"`
}

// Time returns the record timestamp as a time.Time.
func (p PositionRecord) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// SyncCursor is an opaque, server-issued value bounding incremental fetches.
// The engine never interprets it, never manufactures one, and only ever
// replaces it with the exact value returned by the remote collaborator.
// Advancement is monotonic by construction: the orchestrator applies a new
// cursor only on fetch success and fetches complete in issue order.
type SyncCursor string

// PositionBatch is the result of one incremental position fetch: the
// validated-at-the-wire records plus the server's next cursor.
type PositionBatch struct {
	Positions []PositionRecord `json:"positions"`
	Cursor    SyncCursor       `json:"cursor"`
}
