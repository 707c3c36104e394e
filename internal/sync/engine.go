// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
	"github.com/tomtom215/fleetsync/internal/models"
)

// RefreshKind selects what a manual Refresh() call fetches.
type RefreshKind string

const (
	// RefreshDevices re-fetches the device roster.
	RefreshDevices RefreshKind = "devices"
	// RefreshPositions fetches positions for every roster device,
	// ignoring per-device schedules.
	RefreshPositions RefreshKind = "positions"
)

// Engine is the synchronization orchestrator. One explicit instance holds
// all state: rate gate, circuit breaker, per-device polling profiles,
// validator bookkeeping, the state store, and the subscriber registry.
//
// A single tick-loop goroutine owns all scheduling decisions; manual
// Refresh() calls from other goroutines take the same loop mutex as the
// tick, so profiles, the store, and the cursor only ever have one writer
// at a time. Network calls are the only suspension points, and identical
// concurrent fetches are shared via single-flight deduplication.
type Engine struct {
	cfg config.Config

	breaker    *BreakerClient
	gate       *RateGate
	classifier *Classifier
	intervals  *IntervalController
	validator  *RecordValidator
	store      *StateStore
	subs       *SubscriptionRegistry

	// flight deduplicates identical concurrent fetches (same action and
	// parameters): a second caller gets the first call's pending result.
	flight singleflight.Group

	// loopMu serializes the mutation phases of the tick loop and manual
	// Refresh calls: classifier profiles, store writes, and the cursor
	// have exactly one writer at a time.
	loopMu sync.Mutex

	mu                sync.RWMutex
	running           bool
	emergencyUntil    time.Time
	lastTick          time.Time
	lastSync          time.Time
	lastDeviceRefresh time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup

	now func() time.Time // injectable for tests
}

// NewEngine builds an engine around the given collaborator client. The
// client is wrapped with the engine's circuit breaker; callers pass the
// raw transport implementation.
func NewEngine(cfg config.Config, client TelemetryClient) *Engine {
	return &Engine{
		cfg: cfg,
		breaker: NewBreakerClient(client, BreakerConfig{
			FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
			Cooldown:         cfg.Breaker.Cooldown,
		}),
		gate:       NewRateGate(cfg.RateGate.MaxRequests, cfg.RateGate.Window),
		classifier: NewClassifier(cfg.Classifier, cfg.Intervals),
		intervals:  NewIntervalController(cfg.Intervals),
		validator:  NewRecordValidator(cfg.Validator),
		store:      NewStateStore(),
		subs:       NewSubscriptionRegistry(),
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the tick loop. Returns an error if already running. A
// stopped engine can be started again: each Start gets a fresh stop channel.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine is already running")
	}
	e.running = true
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	e.mu.Unlock()

	logging.Info().Dur("tick_interval", e.cfg.Engine.TickInterval).Msg("Starting sync engine")

	e.wg.Add(1)
	go e.run(ctx, stop)
	return nil
}

// Stop halts the tick loop and waits for it to exit. In-flight fetches may
// complete but their results are discarded.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return errors.New("engine is not running")
	}
	e.running = false
	stop := e.stopChan
	e.mu.Unlock()

	logging.Info().Msg("Stopping sync engine")
	close(stop)
	e.wg.Wait()
	logging.Info().Msg("Sync engine stopped")
	return nil
}

// run is the tick loop. Ticks never overlap: the next tick is not
// considered until the previous one has fully resolved. The loop clears
// the running flag on exit so a context-cancelled engine does not report
// itself as polling.
func (e *Engine) run(ctx context.Context, stop <-chan struct{}) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.cfg.Engine.TickInterval)
	defer ticker.Stop()

	// Prime the roster before the first scheduled tick.
	e.tick(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one scheduling cycle: refresh the roster when due, age out
// silent devices, compute due devices, batch them by priority, and fetch.
func (e *Engine) tick(ctx context.Context) {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	start := e.now()
	metrics.TicksTotal.Inc()
	defer func() {
		metrics.TickDuration.Observe(e.now().Sub(start).Seconds())
	}()

	e.mu.Lock()
	e.lastTick = start
	emergency := start.Before(e.emergencyUntil)
	e.mu.Unlock()

	if emergency {
		logging.Debug().Msg("Tick skipped: emergency stop in effect")
		return
	}

	if e.deviceRefreshDue(start) && e.breaker.State() != models.CircuitOpen && e.gate.CanSend() {
		if err := e.refreshDevices(ctx); err != nil {
			logging.Warn().Err(err).Msg("Device list refresh failed")
		}
	}

	e.classifier.Refresh()
	counts := e.classifier.CountsByState()
	active := 0
	for state, n := range counts {
		if state != models.StateOffline {
			active += n
		}
	}
	metrics.ActiveDevices.Set(float64(active))

	global := e.intervals.Recommended(active)
	due := e.classifier.Due(global)
	metrics.DueDevices.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}

	for _, batch := range e.planBatches(due) {
		if e.stopped() {
			return
		}
		e.pollBatch(ctx, batch)
	}
}

// deviceRefreshDue reports whether the roster is stale. The first call
// (zero lastDeviceRefresh) is always due.
func (e *Engine) deviceRefreshDue(now time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastDeviceRefresh.IsZero() || now.Sub(e.lastDeviceRefresh) >= e.cfg.Engine.DeviceListInterval
}

// batch is one gate-checked unit of work: a bounded group of device ids
// polled with a single fetch.
type batch struct {
	deviceIDs []string
	high      bool
}

// planBatches orders due devices by priority, then by how overdue they are,
// and partitions them into bounded batches. MOVING and IDLING devices form
// high-priority batches; PARKED and OFFLINE devices form larger low-priority
// ones fetched afterwards.
func (e *Engine) planBatches(due []DueDevice) []batch {
	sort.Slice(due, func(i, j int) bool {
		pi, pj := due[i].State.Priority(), due[j].State.Priority()
		if pi != pj {
			return pi < pj
		}
		return due[i].Overdue > due[j].Overdue
	})

	var batches []batch
	appendRun := func(ids []string, high bool, size int) {
		for len(ids) > 0 {
			n := size
			if n > len(ids) {
				n = len(ids)
			}
			batches = append(batches, batch{deviceIDs: ids[:n], high: high})
			ids = ids[n:]
		}
	}

	var highIDs, lowIDs []string
	for _, d := range due {
		if d.State == models.StateMoving || d.State == models.StateIdling {
			highIDs = append(highIDs, d.ID)
		} else {
			lowIDs = append(lowIDs, d.ID)
		}
	}
	appendRun(highIDs, true, e.cfg.Engine.HighPriorityBatch)
	appendRun(lowIDs, false, e.cfg.Engine.LowPriorityBatch)
	return batches
}

// pollBatch fetches one batch, gated by the rate budget and the breaker.
// A denied batch is skipped, not queued: its devices stay due next tick.
func (e *Engine) pollBatch(ctx context.Context, b batch) {
	if e.breaker.State() == models.CircuitOpen {
		logging.Debug().Int("devices", len(b.deviceIDs)).Msg("Batch skipped: circuit open")
		return
	}
	if !e.gate.CanSend() {
		logging.Debug().Int("devices", len(b.deviceIDs)).Time("next_available", e.gate.NextAvailableAt()).Msg("Batch skipped: rate budget exhausted")
		return
	}

	result, err := e.fetchPositions(ctx, b.deviceIDs, e.store.Cursor())

	// Polled either way so a failing backend does not make the same
	// devices due every tick.
	e.classifier.MarkPolled(b.deviceIDs)

	if err != nil {
		e.recordFetchFailure(err)
		return
	}
	e.applyBatch(result)
}

// fetchPositions performs the network fetch with single-flight dedup,
// retry with backoff, and the circuit breaker. The single-flight key is
// the action plus its exact parameters.
func (e *Engine) fetchPositions(ctx context.Context, deviceIDs []string, cursor models.SyncCursor) (*models.PositionBatch, error) {
	key := "positions\x00" + string(cursor) + "\x00" + strings.Join(deviceIDs, ",")
	start := e.now()

	v, err, shared := e.flight.Do(key, func() (interface{}, error) {
		var out *models.PositionBatch
		retryErr := retryWithBackoff(ctx, e.cfg.Retry, func() error {
			res, ferr := e.breaker.FetchPositions(ctx, deviceIDs, cursor)
			if ferr != nil {
				return ferr
			}
			out = res
			return nil
		})
		return out, retryErr
	})
	if shared {
		metrics.InflightDeduped.Inc()
	}
	metrics.ObserveFetch("positions", e.now().Sub(start), err)
	if err != nil {
		return nil, err
	}
	return v.(*models.PositionBatch), nil
}

// refreshDevices re-fetches the roster and reconciles the classifier and
// the store against it.
func (e *Engine) refreshDevices(ctx context.Context) error {
	start := e.now()
	v, err, shared := e.flight.Do("devices", func() (interface{}, error) {
		var out []models.Device
		retryErr := retryWithBackoff(ctx, e.cfg.Retry, func() error {
			res, ferr := e.breaker.FetchDeviceList(ctx)
			if ferr != nil {
				return ferr
			}
			out = res
			return nil
		})
		return out, retryErr
	})
	if shared {
		metrics.InflightDeduped.Inc()
	}
	metrics.ObserveFetch("devices", e.now().Sub(start), err)
	if err != nil {
		e.recordFetchFailure(err)
		return err
	}
	if e.stopped() {
		return ErrEngineStopped
	}

	devices := e.activeRoster(v.([]models.Device))
	e.classifier.SetDevices(devices)
	e.store.setDevices(devices)
	e.intervals.RecordSuccess()

	e.mu.Lock()
	e.lastDeviceRefresh = e.now()
	e.mu.Unlock()

	e.subs.NotifyDevices(devices)
	logging.Debug().Int("devices", len(devices)).Msg("Device roster refreshed")
	return nil
}

// activeRoster drops devices whose last activity is older than the
// configured inactive cutoff. A zero LastActive means the upstream never
// reported activity for the device, so it is kept and left to the
// classifier to age out.
func (e *Engine) activeRoster(devices []models.Device) []models.Device {
	cutoff := e.cfg.Engine.InactiveAfter
	if cutoff <= 0 {
		return devices
	}
	now := e.now()
	kept := devices[:0:0]
	for _, d := range devices {
		if !d.LastActive.IsZero() && now.Sub(d.LastActive) > cutoff {
			continue
		}
		kept = append(kept, d)
	}
	if dropped := len(devices) - len(kept); dropped > 0 {
		logging.Debug().Int("dropped", dropped).Msg("Pruned inactive devices from roster")
	}
	return kept
}

// applyBatch routes a successful fetch result through validation into the
// store, the classifier, and the subscribers. Results arriving after a
// stop are discarded.
func (e *Engine) applyBatch(result *models.PositionBatch) {
	if e.stopped() || result == nil {
		return
	}

	validated := e.validator.FilterBatch(result.Positions)
	for _, rec := range validated {
		e.classifier.Observe(rec)
	}
	e.store.applyPositions(validated, result.Cursor)

	e.intervals.RecordSuccess()
	metrics.RecordSyncSuccess()

	e.mu.Lock()
	e.lastSync = e.now()
	e.mu.Unlock()

	e.subs.NotifyPositions(validated)
}

// recordFetchFailure feeds a fetch failure into the interval controller.
// Remote rate limits widen the global interval immediately; breaker
// rejections are no-ops, not failures.
func (e *Engine) recordFetchFailure(err error) {
	switch {
	case isBreakerOpen(err):
		// Skipped, not failed.
	case errors.Is(err, ErrRateLimited):
		e.intervals.RecordRateLimited()
	default:
		e.intervals.RecordFailure()
	}
}

// stopped reports whether Stop() has been called.
func (e *Engine) stopped() bool {
	e.mu.RLock()
	stop := e.stopChan
	e.mu.RUnlock()

	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Refresh triggers a manual fetch, still subject to the rate gate and the
// circuit breaker. Unlike scheduled polls, denials surface as errors. The
// fetch-and-apply phase holds the loop mutex, so it never interleaves with
// a running tick.
func (e *Engine) Refresh(ctx context.Context, kind RefreshKind) error {
	e.mu.RLock()
	emergency := e.now().Before(e.emergencyUntil)
	e.mu.RUnlock()
	if emergency {
		return ErrEmergencyStopped
	}
	if e.stopped() {
		return ErrEngineStopped
	}
	if e.breaker.State() == models.CircuitOpen {
		return fmt.Errorf("refresh rejected: circuit open")
	}
	if !e.gate.CanSend() {
		return fmt.Errorf("refresh rejected: rate budget exhausted until %s", e.gate.NextAvailableAt().Format(time.RFC3339))
	}

	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	switch kind {
	case RefreshDevices:
		return e.refreshDevices(ctx)
	case RefreshPositions:
		snap := e.store.Snapshot()
		ids := make([]string, 0, len(snap.Devices))
		for _, d := range snap.Devices {
			ids = append(ids, d.ID)
		}
		result, err := e.fetchPositions(ctx, ids, snap.Cursor)
		e.classifier.MarkPolled(ids)
		if err != nil {
			e.recordFetchFailure(err)
			return err
		}
		e.applyBatch(result)
		return nil
	default:
		return fmt.Errorf("unknown refresh kind %q", kind)
	}
}

// Subscribe registers a callback for engine events.
func (e *Engine) Subscribe(kind SubscriptionKind, cb Callback, opts SubscribeOptions) string {
	return e.subs.Subscribe(kind, cb, opts)
}

// Unsubscribe removes a subscription, reporting whether it existed.
func (e *Engine) Unsubscribe(id string) bool {
	return e.subs.Unsubscribe(id)
}

// Snapshot returns the last-known-good fleet state. Served from the store,
// it stays available during outages.
func (e *Engine) Snapshot() models.Snapshot {
	return e.store.Snapshot()
}

// EmergencyStop forces a polling cooldown for the given duration. Distinct
// from the breaker's automatic open state: it is an operator decision and
// ignores fetch outcomes.
func (e *Engine) EmergencyStop(d time.Duration) {
	e.mu.Lock()
	e.emergencyUntil = e.now().Add(d)
	e.mu.Unlock()
	logging.Warn().Dur("duration", d).Msg("Emergency stop engaged")
}

// Resume lifts an emergency stop before its deadline.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.emergencyUntil = time.Time{}
	e.mu.Unlock()
	logging.Info().Msg("Emergency stop lifted")
}

// Status reports the engine's true current state, including during
// outages: the breaker and rate gate are never masked.
func (e *Engine) Status() models.EngineStatus {
	e.mu.RLock()
	running := e.running
	emergency := e.now().Before(e.emergencyUntil)
	lastTick := e.lastTick
	lastSync := e.lastSync
	e.mu.RUnlock()

	cache := e.validator.Stats()
	cache.StoredPositions = e.store.PositionCount()

	return models.EngineStatus{
		Polling:           running && !emergency,
		EmergencyStopped:  emergency,
		CircuitState:      e.breaker.State(),
		ActiveDeviceCount: e.classifier.ActiveCount(),
		RateBudgetLeft:    e.gate.Remaining(),
		LastTick:          lastTick,
		LastSync:          lastSync,
		Cache:             cache,
	}
}
