// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"sync"
	"time"

	"github.com/tomtom215/fleetsync/internal/metrics"
)

// RateGate enforces a hard cap on outbound requests per rolling window.
// Unlike a token bucket, it tracks the exact send timestamps, so the cap
// holds for any call pattern: at most maxRequests sends in any window-sized
// interval. Denials have no side effect; a send is recorded only on allow.
type RateGate struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	sent        []time.Time // timestamps of admitted sends, oldest first

	now func() time.Time // injectable for tests
}

// NewRateGate creates a gate admitting maxRequests sends per rolling window.
func NewRateGate(maxRequests int, window time.Duration) *RateGate {
	if maxRequests <= 0 {
		maxRequests = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateGate{
		maxRequests: maxRequests,
		window:      window,
		sent:        make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// CanSend reports whether a send is admitted right now; if so, the send is
// recorded against the budget. Denial records nothing.
func (g *RateGate) CanSend() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.sent) >= g.maxRequests {
		metrics.RateGateDenied.Inc()
		return false
	}

	g.sent = append(g.sent, now)
	metrics.RateGateAllowed.Inc()
	return true
}

// NextAvailableAt returns the earliest instant at which a send would be
// admitted. If budget remains it returns the current time.
func (g *RateGate) NextAvailableAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.sent) < g.maxRequests {
		return now
	}
	// The oldest recorded send leaves the window first.
	return g.sent[0].Add(g.window)
}

// Remaining returns the number of sends left in the current window.
func (g *RateGate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evict(g.now())
	return g.maxRequests - len(g.sent)
}

// evict drops timestamps that have aged out of the window. Caller holds
// the lock.
func (g *RateGate) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.sent) && !g.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.sent = append(g.sent[:0], g.sent[i:]...)
	}
}
