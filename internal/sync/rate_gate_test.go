// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"testing"
	"time"
)

func TestRateGateCapPerWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := NewRateGate(5, time.Minute)
	g.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if !g.CanSend() {
			t.Fatalf("send %d denied, want allowed", i+1)
		}
	}
	if g.CanSend() {
		t.Error("send 6 allowed, want denied")
	}
	if got := g.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestRateGateDenialRecordsNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := NewRateGate(2, time.Minute)
	g.now = func() time.Time { return now }

	g.CanSend()
	g.CanSend()

	// Repeated denials must not extend the blackout.
	for i := 0; i < 10; i++ {
		if g.CanSend() {
			t.Fatalf("denied gate allowed send on attempt %d", i)
		}
	}

	want := now.Add(time.Minute)
	if got := g.NextAvailableAt(); !got.Equal(want) {
		t.Errorf("NextAvailableAt() = %v, want %v", got, want)
	}
}

func TestRateGateRollingWindowRecovery(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	now := base
	g := NewRateGate(3, time.Minute)
	g.now = func() time.Time { return now }

	g.CanSend() // t=0
	now = base.Add(20 * time.Second)
	g.CanSend() // t=20
	now = base.Add(40 * time.Second)
	g.CanSend() // t=40

	if g.CanSend() {
		t.Fatal("send over cap allowed")
	}

	// First send leaves the window at t=60.
	now = base.Add(59 * time.Second)
	if g.CanSend() {
		t.Error("send allowed before oldest aged out")
	}
	now = base.Add(61 * time.Second)
	if !g.CanSend() {
		t.Error("send denied after oldest aged out")
	}
}

func TestRateGateNextAvailableWithBudget(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := NewRateGate(3, time.Minute)
	g.now = func() time.Time { return now }

	if got := g.NextAvailableAt(); !got.Equal(now) {
		t.Errorf("NextAvailableAt() = %v, want %v", got, now)
	}
}
