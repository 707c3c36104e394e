// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/models"
)

// StateStore holds the engine's last-known-good view of the fleet: the
// device roster, the latest position per device, and the sync cursor.
// Mutators are unexported; only the orchestrator writes, on its tick path.
// Readers get immutable copies via Snapshot(), so subscribers and the HTTP
// surface keep serving cached data during outages.
type StateStore struct {
	mu         sync.RWMutex
	devices    []models.Device
	positions  map[string]models.PositionRecord // latest per device id
	cursor     models.SyncCursor
	lastUpdate time.Time
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		positions: make(map[string]models.PositionRecord),
	}
}

// setDevices replaces the roster wholesale and drops positions for devices
// no longer on it.
func (s *StateStore) setDevices(devices []models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = make([]models.Device, len(devices))
	copy(s.devices, devices)

	keep := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		keep[d.ID] = struct{}{}
	}
	for id := range s.positions {
		if _, ok := keep[id]; !ok {
			delete(s.positions, id)
		}
	}
	s.lastUpdate = time.Now()
}

// applyPositions ingests validated records with latest-per-device replace
// semantics and advances the cursor to the server-returned value. Cursors
// are opaque, so any non-empty returned value is taken as the new position;
// an empty cursor means the server kept it unchanged.
func (s *StateStore) applyPositions(records []models.PositionRecord, cursor models.SyncCursor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.positions[rec.DeviceID] = rec
	}

	if cursor != "" && cursor != s.cursor {
		logging.Debug().Str("from", string(s.cursor)).Str("to", string(cursor)).Msg("Cursor advanced")
		s.cursor = cursor
	}
	s.lastUpdate = time.Now()
}

// reset clears positions and the cursor but keeps the device roster.
func (s *StateStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]models.PositionRecord)
	s.cursor = ""
	s.lastUpdate = time.Now()
}

// Cursor returns the current sync cursor.
func (s *StateStore) Cursor() models.SyncCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// DeviceCount returns the roster size.
func (s *StateStore) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// PositionCount returns the number of devices with a stored position.
func (s *StateStore) PositionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Position returns the latest stored position for a device.
func (s *StateStore) Position(deviceID string) (models.PositionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.positions[deviceID]
	return rec, ok
}

// Snapshot returns an immutable copy of the store. Positions are ordered
// by device id so consecutive snapshots are comparable.
func (s *StateStore) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Devices:    make([]models.Device, len(s.devices)),
		Positions:  make([]models.PositionRecord, 0, len(s.positions)),
		Cursor:     s.cursor,
		LastUpdate: s.lastUpdate,
	}
	copy(snap.Devices, s.devices)
	for _, rec := range s.positions {
		snap.Positions = append(snap.Positions, rec)
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].DeviceID < snap.Positions[j].DeviceID
	})
	return snap
}
