// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"
	"sync"

	"github.com/tomtom215/fleetsync/internal/models"
)

// fakeClient is a scriptable TelemetryClient for tests. Every network-facing
// call is counted so tests can assert how many real calls a layer issued.
type fakeClient struct {
	mu sync.Mutex

	devices []models.Device

	// positionsFn, when set, produces the response for FetchPositions.
	positionsFn func(deviceIDs []string, since models.SyncCursor) (*models.PositionBatch, error)

	// deviceErr, when set, fails FetchDeviceList.
	deviceErr error

	deviceCalls   int
	positionCalls int

	// lastDeviceIDs records the device set of the most recent positions call.
	lastDeviceIDs []string
}

var _ TelemetryClient = (*fakeClient)(nil)

func (f *fakeClient) FetchDeviceList(ctx context.Context) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceCalls++
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	out := make([]models.Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeClient) FetchPositions(ctx context.Context, deviceIDs []string, since models.SyncCursor) (*models.PositionBatch, error) {
	f.mu.Lock()
	f.positionCalls++
	f.lastDeviceIDs = append([]string(nil), deviceIDs...)
	fn := f.positionsFn
	f.mu.Unlock()

	if fn == nil {
		return &models.PositionBatch{Cursor: since}, nil
	}
	return fn(deviceIDs, since)
}

func (f *fakeClient) calls() (devices, positions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceCalls, f.positionCalls
}
