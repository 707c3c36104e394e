// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
	"github.com/tomtom215/fleetsync/internal/models"
)

// SubscriptionKind selects which engine events a subscriber receives.
type SubscriptionKind string

const (
	// KindPositions delivers validated position records after each
	// successful fetch.
	KindPositions SubscriptionKind = "positions"
	// KindDevices delivers the roster after each device-list refresh.
	KindDevices SubscriptionKind = "devices"
)

// Event is the payload delivered to subscribers. Exactly one of Positions
// or Devices is set, matching the subscription kind.
type Event struct {
	Kind      SubscriptionKind
	Positions []models.PositionRecord
	Devices   []models.Device
}

// Callback receives engine events. Callbacks run synchronously on the
// orchestrator's tick path and must return quickly; a slow subscriber
// delays the whole engine.
type Callback func(Event)

// SubscribeOptions tunes delivery for one subscription.
type SubscribeOptions struct {
	// Priority orders delivery; lower values are notified first.
	Priority int
	// DeviceIDs, when non-empty, restricts position events to these
	// devices. Ignored for device-list subscriptions.
	DeviceIDs []string
}

type subscription struct {
	id       string
	kind     SubscriptionKind
	cb       Callback
	priority int
	seq      uint64 // insertion order, tiebreaker within a priority
	filter   map[string]struct{}
}

// SubscriptionRegistry is the engine's typed fan-out: subscribers register
// a callback per event kind and the orchestrator notifies them in priority
// order after each successful tick.
type SubscriptionRegistry struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	nextSeq uint64
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{subs: make(map[string]*subscription)}
}

// Subscribe registers cb for events of the given kind and returns the
// subscription id used to unsubscribe.
func (r *SubscriptionRegistry) Subscribe(kind SubscriptionKind, cb Callback, opts SubscribeOptions) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &subscription{
		id:       uuid.NewString(),
		kind:     kind,
		cb:       cb,
		priority: opts.Priority,
		seq:      r.nextSeq,
	}
	r.nextSeq++
	if len(opts.DeviceIDs) > 0 {
		sub.filter = make(map[string]struct{}, len(opts.DeviceIDs))
		for _, id := range opts.DeviceIDs {
			sub.filter[id] = struct{}{}
		}
	}
	r.subs[sub.id] = sub
	metrics.Subscribers.Set(float64(len(r.subs)))
	return sub.id
}

// Unsubscribe removes a subscription, reporting whether it existed.
func (r *SubscriptionRegistry) Unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return false
	}
	delete(r.subs, id)
	metrics.Subscribers.Set(float64(len(r.subs)))
	return true
}

// Count returns the number of active subscriptions.
func (r *SubscriptionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// NotifyPositions delivers validated records to position subscribers in
// priority order, applying per-subscription device filters.
func (r *SubscriptionRegistry) NotifyPositions(records []models.PositionRecord) {
	if len(records) == 0 {
		return
	}
	for _, sub := range r.ordered(KindPositions) {
		payload := records
		if sub.filter != nil {
			payload = payload[:0:0]
			for _, rec := range records {
				if _, ok := sub.filter[rec.DeviceID]; ok {
					payload = append(payload, rec)
				}
			}
			if len(payload) == 0 {
				continue
			}
		}
		r.deliver(sub, Event{Kind: KindPositions, Positions: payload})
	}
}

// NotifyDevices delivers the refreshed roster to device subscribers.
func (r *SubscriptionRegistry) NotifyDevices(devices []models.Device) {
	for _, sub := range r.ordered(KindDevices) {
		r.deliver(sub, Event{Kind: KindDevices, Devices: devices})
	}
}

// ordered returns the subscriptions for a kind sorted by priority, then
// insertion order.
func (r *SubscriptionRegistry) ordered(kind SubscriptionKind) []*subscription {
	r.mu.RLock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.kind == kind {
			subs = append(subs, sub)
		}
	}
	r.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority < subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	return subs
}

// deliver invokes one callback, containing panics so a broken subscriber
// cannot take down the tick loop.
func (r *SubscriptionRegistry) deliver(sub *subscription, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().Str("subscription", sub.id).Interface("panic", rec).Msg("Subscriber callback panicked")
		}
	}()
	sub.cb(ev)
}
