// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"

	"github.com/tomtom215/fleetsync/internal/models"
)

// TelemetryClient is the narrow collaborator interface through which the
// engine reaches the remote telemetry API. Implementations own transport,
// credentials, and response parsing; the engine owns scheduling, budgets,
// and data integrity.
//
// Implementations classify failures with the package error constructors
// (TransientError, RateLimitError, AuthError) so the orchestrator can pick
// the right recovery strategy. An unclassified error is treated as
// transient.
type TelemetryClient interface {
	// FetchDeviceList retrieves the full device roster. The engine
	// replaces its device set wholesale with the result.
	FetchDeviceList(ctx context.Context) ([]models.Device, error)

	// FetchPositions retrieves position records for the given devices
	// newer than sinceCursor, along with the server's next cursor. The
	// returned cursor is opaque; the engine stores it verbatim.
	FetchPositions(ctx context.Context, deviceIDs []string, sinceCursor models.SyncCursor) (*models.PositionBatch, error)
}
