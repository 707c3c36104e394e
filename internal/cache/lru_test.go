// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTimestampLRU_GetAdd(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(10, time.Minute)

	if _, ok := c.Get("veh-1"); ok {
		t.Error("expected miss on empty cache")
	}

	ts := time.UnixMilli(1000)
	c.Add("veh-1", ts)

	got, ok := c.Get("veh-1")
	if !ok {
		t.Fatal("expected hit after Add")
	}
	if !got.Equal(ts) {
		t.Errorf("value = %v, want %v", got, ts)
	}
}

func TestTimestampLRU_UpdateExisting(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(10, time.Minute)
	c.Add("veh-1", time.UnixMilli(1000))
	c.Add("veh-1", time.UnixMilli(2000))

	got, ok := c.Get("veh-1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.UnixMilli() != 2000 {
		t.Errorf("value = %d, want 2000", got.UnixMilli())
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestTimestampLRU_CapacityEviction(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(3, time.Minute)
	for i := 0; i < 4; i++ {
		c.Add(fmt.Sprintf("veh-%d", i), time.Now())
	}

	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
	// veh-0 was least recently used and should be gone.
	if _, ok := c.Get("veh-0"); ok {
		t.Error("expected veh-0 to be evicted")
	}
	if _, ok := c.Get("veh-3"); !ok {
		t.Error("expected veh-3 to survive")
	}
}

func TestTimestampLRU_RecencyOrdering(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(2, time.Minute)
	c.Add("a", time.Now())
	c.Add("b", time.Now())

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Add("c", time.Now())

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
}

func TestTimestampLRU_TTLExpiration(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(10, 50*time.Millisecond)
	c.Add("veh-1", time.Now())

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Get("veh-1"); ok {
		t.Error("expected entry to expire after TTL")
	}
}

func TestTimestampLRU_RemoveAndClear(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(10, time.Minute)
	c.Add("veh-1", time.Now())
	c.Add("veh-2", time.Now())

	if !c.Remove("veh-1") {
		t.Error("Remove should report true for present key")
	}
	if c.Remove("veh-1") {
		t.Error("Remove should report false for absent key")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", c.Len())
	}
}

func TestTimestampLRU_Stats(t *testing.T) {
	t.Parallel()

	c := NewTimestampLRU(10, time.Minute)
	c.Add("veh-1", time.Now())
	c.Get("veh-1")
	c.Get("absent")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = (%d, %d, %d), want (1, 1, 1)", hits, misses, size)
	}
}
