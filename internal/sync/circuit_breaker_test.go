// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/fleetsync/internal/models"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{
		positionsFn: func([]string, models.SyncCursor) (*models.PositionBatch, error) {
			return nil, TransientError(errors.New("dial tcp: connection refused"))
		},
	}
	bc := NewBreakerClient(fake, BreakerConfig{FailureThreshold: 5, Cooldown: time.Hour})

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := bc.FetchPositions(ctx, []string{"d1"}, "")
		if err == nil {
			t.Fatalf("attempt %d: err = nil, want failure", i)
		}
		if isBreakerOpen(err) {
			t.Fatalf("attempt %d rejected by breaker, want real call", i)
		}
	}

	if got := bc.State(); got != models.CircuitOpen {
		t.Fatalf("State() after 5 failures = %v, want %v", got, models.CircuitOpen)
	}

	// The sixth attempt must be rejected locally with no network call.
	_, before := fake.calls()
	_, err := bc.FetchPositions(ctx, []string{"d1"}, "")
	if !isBreakerOpen(err) {
		t.Fatalf("attempt 6 err = %v, want open-state rejection", err)
	}
	if _, after := fake.calls(); after != before {
		t.Errorf("attempt 6 reached backend: %d calls, want %d", after, before)
	}
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	t.Parallel()

	var fail bool
	fake := &fakeClient{
		positionsFn: func([]string, models.SyncCursor) (*models.PositionBatch, error) {
			if fail {
				return nil, TransientError(errors.New("timeout"))
			}
			return &models.PositionBatch{}, nil
		},
	}
	bc := NewBreakerClient(fake, BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour})

	ctx := context.Background()

	// Two failures, a success, then two more failures: circuit stays closed
	// because the success broke the run.
	fail = true
	bc.FetchPositions(ctx, nil, "")
	bc.FetchPositions(ctx, nil, "")
	fail = false
	if _, err := bc.FetchPositions(ctx, nil, ""); err != nil {
		t.Fatalf("success call failed: %v", err)
	}
	fail = true
	bc.FetchPositions(ctx, nil, "")
	bc.FetchPositions(ctx, nil, "")

	if got := bc.State(); got != models.CircuitClosed {
		t.Errorf("State() = %v, want %v", got, models.CircuitClosed)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()

	var fail bool
	fake := &fakeClient{
		positionsFn: func([]string, models.SyncCursor) (*models.PositionBatch, error) {
			if fail {
				return nil, TransientError(errors.New("timeout"))
			}
			return &models.PositionBatch{}, nil
		},
	}
	bc := NewBreakerClient(fake, BreakerConfig{FailureThreshold: 2, Cooldown: 50 * time.Millisecond})
	ctx := context.Background()

	fail = true
	bc.FetchPositions(ctx, nil, "")
	bc.FetchPositions(ctx, nil, "")
	if got := bc.State(); got != models.CircuitOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	// A failed probe reopens the circuit and restarts the cooldown.
	time.Sleep(80 * time.Millisecond)
	if _, err := bc.FetchPositions(ctx, nil, ""); err == nil {
		t.Fatal("failing probe returned nil error")
	}
	if got := bc.State(); got != models.CircuitOpen {
		t.Fatalf("State() after failed probe = %v, want open", got)
	}

	// A successful probe closes it.
	fail = false
	time.Sleep(80 * time.Millisecond)
	if _, err := bc.FetchPositions(ctx, nil, ""); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if got := bc.State(); got != models.CircuitClosed {
		t.Errorf("State() after successful probe = %v, want closed", got)
	}
}

func TestBreakerWrapsDeviceList(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{devices: []models.Device{{ID: "d1", Name: "truck-1"}}}
	bc := NewBreakerClient(fake, BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute})

	devices, err := bc.FetchDeviceList(context.Background())
	if err != nil {
		t.Fatalf("FetchDeviceList() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "d1" {
		t.Errorf("FetchDeviceList() = %+v, want single device d1", devices)
	}
}
