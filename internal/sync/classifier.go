// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"sync"
	"time"

	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
	"github.com/tomtom215/fleetsync/internal/models"
)

// PollingProfile is the per-device scheduling record maintained by the
// classifier. One profile exists per known device id, created lazily on
// first sight and removed when the device leaves the roster.
type PollingProfile struct {
	DeviceID string
	State    models.VehicleState
	// StateSince is when the device entered its current state.
	StateSince time.Time
	// ConsecutiveCount is how many classifications in a row produced the
	// current state. Resets to 1 on every state change.
	ConsecutiveCount int
	// Interval is the device's current polling interval: the state's base
	// interval, possibly escalated for long-stable non-moving devices.
	Interval time.Duration
	// LastPolled is when the device was last included in a fetch batch.
	LastPolled time.Time
	// LastReport is the timestamp of the newest accepted position.
	LastReport time.Time

	// speedHistory is a bounded ring of recent speeds, newest last.
	speedHistory []float64
}

// DueDevice is the scheduling view of a profile handed to the orchestrator.
type DueDevice struct {
	ID      string
	State   models.VehicleState
	Overdue time.Duration
}

// Classifier infers a motion state per device from incoming positions and
// derives each device's polling interval from it. Fast-changing devices are
// polled often; devices parked for hours are polled rarely.
//
// State decision order, highest precedence first: OFFLINE when the newest
// report is older than the offline threshold, MOVING when current speed
// exceeds the moving threshold, IDLING when the recent speed history still
// shows movement, PARKED otherwise. The history check is the hysteresis
// that forces the MOVING -> IDLING -> PARKED descent instead of an abrupt
// drop to PARKED at the first zero-speed fix.
type Classifier struct {
	mu        sync.Mutex
	cfg       config.ClassifierConfig
	intervals config.IntervalsConfig
	profiles  map[string]*PollingProfile

	now func() time.Time // injectable for tests
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.ClassifierConfig, intervals config.IntervalsConfig) *Classifier {
	return &Classifier{
		cfg:       cfg,
		intervals: intervals,
		profiles:  make(map[string]*PollingProfile),
		now:       time.Now,
	}
}

// stateInterval returns the base/max interval pair for a state.
func (c *Classifier) stateInterval(state models.VehicleState) config.StateIntervalConfig {
	switch state {
	case models.StateMoving:
		return c.intervals.Moving
	case models.StateIdling:
		return c.intervals.Idling
	case models.StateParked:
		return c.intervals.Parked
	default:
		return c.intervals.Offline
	}
}

// SetDevices reconciles the profile map against the current device roster:
// unknown devices get a fresh profile, departed devices are dropped. New
// profiles start PARKED with a zero LastPolled so they are due immediately.
func (c *Classifier) SetDevices(devices []models.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		seen[d.ID] = struct{}{}
		if _, ok := c.profiles[d.ID]; ok {
			continue
		}
		c.profiles[d.ID] = &PollingProfile{
			DeviceID:         d.ID,
			State:            models.StateParked,
			StateSince:       c.now(),
			ConsecutiveCount: 1,
			Interval:         c.intervals.Parked.Base,
			speedHistory:     make([]float64, 0, c.cfg.SpeedHistorySize),
		}
	}
	for id := range c.profiles {
		if _, ok := seen[id]; !ok {
			delete(c.profiles, id)
		}
	}
}

// Observe feeds an accepted position into the device's state machine.
// Unknown device ids are ignored; profiles exist only for roster devices.
func (c *Classifier) Observe(rec models.PositionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.profiles[rec.DeviceID]
	if !ok {
		return
	}

	now := c.now()
	reportTime := rec.Time()
	if reportTime.After(p.LastReport) {
		p.LastReport = reportTime
	}

	state := c.classify(p, rec, now)
	c.applyState(p, state, now)

	// Record the speed after classification so the IDLING check looks at
	// history preceding this fix.
	p.speedHistory = append(p.speedHistory, rec.SpeedKmh)
	if len(p.speedHistory) > c.cfg.SpeedHistorySize {
		p.speedHistory = p.speedHistory[len(p.speedHistory)-c.cfg.SpeedHistorySize:]
	}
}

// classify runs the decision order for one fresh position. Caller holds
// the lock.
func (c *Classifier) classify(p *PollingProfile, rec models.PositionRecord, now time.Time) models.VehicleState {
	if now.Sub(rec.Time()) >= c.cfg.OfflineAfter {
		return models.StateOffline
	}
	if rec.SpeedKmh > c.cfg.MovingSpeedKmh {
		return models.StateMoving
	}
	if c.recentMovement(p) {
		return models.StateIdling
	}
	return models.StateParked
}

// recentMovement reports whether any sample in the speed history exceeds
// the moving threshold. Caller holds the lock.
func (c *Classifier) recentMovement(p *PollingProfile) bool {
	for _, s := range p.speedHistory {
		if s > c.cfg.MovingSpeedKmh {
			return true
		}
	}
	return false
}

// applyState transitions or persists the profile's state. On a transition
// the consecutive count and interval reset; on persistence the count grows
// and, for non-moving states, the interval escalates toward the state max.
// Caller holds the lock.
func (c *Classifier) applyState(p *PollingProfile, state models.VehicleState, now time.Time) {
	if state != p.State {
		logging.Debug().Str("device", p.DeviceID).Str("from", p.State.String()).Str("to", state.String()).Msg("Device state transition")
		p.State = state
		p.StateSince = now
		p.ConsecutiveCount = 1
		p.Interval = c.stateInterval(state).Base
		return
	}

	p.ConsecutiveCount++
	if state == models.StateMoving {
		return
	}
	if p.ConsecutiveCount <= c.cfg.EscalateAfter {
		return
	}

	max := c.stateInterval(state).Max
	escalated := time.Duration(float64(p.Interval) * c.cfg.EscalationFactor)
	if escalated > max {
		escalated = max
	}
	p.Interval = escalated
}

// Refresh re-evaluates report ages without new data, demoting devices whose
// newest report has aged past the offline threshold. Called once per tick
// so silent devices drift to OFFLINE instead of staying MOVING forever.
func (c *Classifier) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, p := range c.profiles {
		if p.State == models.StateOffline {
			continue
		}
		if p.LastReport.IsZero() || now.Sub(p.LastReport) < c.cfg.OfflineAfter {
			continue
		}
		c.applyState(p, models.StateOffline, now)
	}
}

// Due returns devices whose effective interval has elapsed since their last
// poll, unsorted. The effective interval is the wider of the device's own
// interval and the global recommended interval.
func (c *Classifier) Due(global time.Duration) []DueDevice {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var due []DueDevice
	for _, p := range c.profiles {
		interval := p.Interval
		if global > interval {
			interval = global
		}
		elapsed := now.Sub(p.LastPolled)
		if p.LastPolled.IsZero() || elapsed >= interval {
			due = append(due, DueDevice{
				ID:      p.DeviceID,
				State:   p.State,
				Overdue: elapsed - interval,
			})
		}
	}
	return due
}

// MarkPolled stamps the devices as polled now. Called after a batch fetch
// completes, success or not, so a failing backend does not make the same
// devices due every tick.
func (c *Classifier) MarkPolled(deviceIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, id := range deviceIDs {
		if p, ok := c.profiles[id]; ok {
			p.LastPolled = now
		}
	}
}

// CountsByState returns the number of devices in each state and publishes
// the per-state gauges.
func (c *Classifier) CountsByState() map[models.VehicleState]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[models.VehicleState]int, 4)
	for _, p := range c.profiles {
		counts[p.State]++
	}
	for _, state := range []models.VehicleState{models.StateMoving, models.StateIdling, models.StateParked, models.StateOffline} {
		metrics.DevicesByState.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
	return counts
}

// ActiveCount returns the number of non-OFFLINE devices.
func (c *Classifier) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, p := range c.profiles {
		if p.State != models.StateOffline {
			n++
		}
	}
	return n
}

// Profile returns a copy of one device's profile for status inspection.
func (c *Classifier) Profile(deviceID string) (PollingProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.profiles[deviceID]
	if !ok {
		return PollingProfile{}, false
	}
	out := *p
	out.speedHistory = append([]float64(nil), p.speedHistory...)
	return out, true
}
