// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package cache

import (
	"sync"
	"time"
)

// lruEntry is a node in the doubly-linked recency list.
type lruEntry struct {
	key       string
	value     time.Time
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// TimestampLRU is a thread-safe LRU map from string keys to timestamps,
// with TTL-based lazy expiration and O(1) Get/Add/eviction. The record
// validator uses it to remember the last accepted fix time per device:
// capacity bounds memory on large fleets and the TTL lets bookkeeping for
// devices that stop reporting age out on its own.
type TimestampLRU struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*lruEntry

	// head.next is most recently used, tail.prev least.
	head *lruEntry
	tail *lruEntry

	hits   int64
	misses int64
}

// NewTimestampLRU creates an LRU with the given capacity and entry TTL.
// Non-positive arguments fall back to 10000 entries / 5 minutes.
func NewTimestampLRU(capacity int, ttl time.Duration) *TimestampLRU {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &TimestampLRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the stored timestamp for key, if present and unexpired.
// A hit marks the entry most recently used.
func (c *TimestampLRU) Get(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return time.Time{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return time.Time{}, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.value, true
}

// Add inserts or updates key with value, refreshing its TTL. When the
// cache is at capacity the least recently used entry is evicted.
func (c *TimestampLRU) Add(key string, value time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if entry, ok := c.items[key]; ok {
		entry.value = value
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes key. Returns true if it was present.
func (c *TimestampLRU) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeEntry(entry)
	return true
}

// Len returns the number of live entries.
func (c *TimestampLRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *TimestampLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit/miss statistics and the current size.
func (c *TimestampLRU) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// list operations; caller holds the lock

func (c *TimestampLRU) addToFront(entry *lruEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *TimestampLRU) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *TimestampLRU) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *TimestampLRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
