// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"testing"

	"github.com/tomtom215/fleetsync/internal/models"
)

func TestSubscribeNotifyUnsubscribe(t *testing.T) {
	t.Parallel()

	r := NewSubscriptionRegistry()
	var got []models.PositionRecord
	id := r.Subscribe(KindPositions, func(ev Event) {
		got = ev.Positions
	}, SubscribeOptions{})

	records := []models.PositionRecord{{DeviceID: "d1", Timestamp: 1000}}
	r.NotifyPositions(records)
	if len(got) != 1 || got[0].DeviceID != "d1" {
		t.Fatalf("callback got %+v, want the d1 record", got)
	}

	if !r.Unsubscribe(id) {
		t.Fatal("Unsubscribe() = false for live subscription")
	}
	if r.Unsubscribe(id) {
		t.Error("Unsubscribe() = true for removed subscription")
	}

	got = nil
	r.NotifyPositions(records)
	if got != nil {
		t.Error("unsubscribed callback still invoked")
	}
}

func TestNotifyPriorityOrder(t *testing.T) {
	t.Parallel()

	r := NewSubscriptionRegistry()
	var order []string
	r.Subscribe(KindPositions, func(Event) { order = append(order, "late") }, SubscribeOptions{Priority: 10})
	r.Subscribe(KindPositions, func(Event) { order = append(order, "early") }, SubscribeOptions{Priority: 1})
	r.Subscribe(KindPositions, func(Event) { order = append(order, "mid") }, SubscribeOptions{Priority: 5})

	r.NotifyPositions([]models.PositionRecord{{DeviceID: "d1", Timestamp: 1}})

	want := []string{"early", "mid", "late"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", order, want)
		}
	}
}

func TestNotifyDeviceFilter(t *testing.T) {
	t.Parallel()

	r := NewSubscriptionRegistry()
	var got []models.PositionRecord
	calls := 0
	r.Subscribe(KindPositions, func(ev Event) {
		calls++
		got = ev.Positions
	}, SubscribeOptions{DeviceIDs: []string{"d2"}})

	r.NotifyPositions([]models.PositionRecord{
		{DeviceID: "d1", Timestamp: 1},
		{DeviceID: "d2", Timestamp: 1},
		{DeviceID: "d3", Timestamp: 1},
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(got) != 1 || got[0].DeviceID != "d2" {
		t.Errorf("filtered payload = %+v, want only d2", got)
	}

	// No matching devices: the callback is skipped entirely.
	r.NotifyPositions([]models.PositionRecord{{DeviceID: "d9", Timestamp: 2}})
	if calls != 1 {
		t.Errorf("calls = %d after non-matching batch, want 1", calls)
	}
}

func TestNotifyContainsPanics(t *testing.T) {
	t.Parallel()

	r := NewSubscriptionRegistry()
	r.Subscribe(KindPositions, func(Event) { panic("broken subscriber") }, SubscribeOptions{Priority: 0})
	survived := false
	r.Subscribe(KindPositions, func(Event) { survived = true }, SubscribeOptions{Priority: 1})

	r.NotifyPositions([]models.PositionRecord{{DeviceID: "d1", Timestamp: 1}})
	if !survived {
		t.Error("panic in one subscriber prevented delivery to the next")
	}
}

func TestNotifyDevicesKind(t *testing.T) {
	t.Parallel()

	r := NewSubscriptionRegistry()
	var roster []models.Device
	r.Subscribe(KindDevices, func(ev Event) { roster = ev.Devices }, SubscribeOptions{})
	positionsCalled := false
	r.Subscribe(KindPositions, func(Event) { positionsCalled = true }, SubscribeOptions{})

	r.NotifyDevices([]models.Device{{ID: "d1"}})
	if len(roster) != 1 {
		t.Errorf("device subscriber got %d devices, want 1", len(roster))
	}
	if positionsCalled {
		t.Error("position subscriber received a device event")
	}
}
