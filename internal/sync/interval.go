// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tomtom215/fleetsync/internal/cache"
	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
)

// loadWindow is the observation window for the success/failure counters
// feeding the global interval recommendation.
const loadWindow = time.Minute

// IntervalController derives the global recommended polling interval from
// fleet size and recent fetch outcomes. Per-device intervals (classifier)
// are floored by this value: under pressure everything slows down together.
type IntervalController struct {
	mu  sync.Mutex
	cfg config.IntervalsConfig

	successes *cache.SlidingWindowCounter
	failures  *cache.SlidingWindowCounter

	// widenedUntil forces the high-load tier after a remote rate-limit
	// response, independent of the failure rate.
	widenedUntil time.Time

	now func() time.Time // injectable for tests
}

// NewIntervalController creates a controller with the given tier settings.
func NewIntervalController(cfg config.IntervalsConfig) *IntervalController {
	return &IntervalController{
		cfg:       cfg,
		successes: cache.NewSlidingWindowCounter(loadWindow, 12),
		failures:  cache.NewSlidingWindowCounter(loadWindow, 12),
		now:       time.Now,
	}
}

// RecordSuccess feeds one successful fetch into the load window.
func (ic *IntervalController) RecordSuccess() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.successes.IncrementOne()
}

// RecordFailure feeds one failed fetch into the load window.
func (ic *IntervalController) RecordFailure() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.failures.IncrementOne()
}

// RecordRateLimited notes a remote throttling response: the recommendation
// jumps straight to the high-load tier and stays there for a full window.
func (ic *IntervalController) RecordRateLimited() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.failures.IncrementOne()
	ic.widenedUntil = ic.now().Add(loadWindow)
	logging.Warn().Msg("Remote rate limit hit, widening global poll interval")
}

// FailureRate returns the failed share of fetches in the current window,
// 0 when the window is empty.
func (ic *IntervalController) FailureRate() float64 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.failureRateLocked()
}

func (ic *IntervalController) failureRateLocked() float64 {
	ok := ic.successes.Count()
	bad := ic.failures.Count()
	total := ok + bad
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}

// Recommended resolves the global interval tier for the given fleet size.
// High load (many active devices, elevated failure rate, or a recent remote
// rate limit) widens the interval; a small healthy fleet narrows it.
func (ic *IntervalController) Recommended(activeDevices int) time.Duration {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if ic.now().Before(ic.widenedUntil) {
		return ic.cfg.HighLoad
	}
	if activeDevices > ic.cfg.HighLoadAbove || ic.failureRateLocked() > ic.cfg.FailureRateHigh {
		return ic.cfg.HighLoad
	}
	if activeDevices < ic.cfg.LightLoadBelow {
		return ic.cfg.LightLoad
	}
	return ic.cfg.Baseline
}

// retryWithBackoff executes fn with exponential backoff on transient
// failure. Delay grows as base * 2^attempt plus bounded jitter, capped at
// MaxDelay. Non-retryable errors (auth, remote rate limit, breaker open)
// and context cancellation abort immediately; exhausting the attempts
// surfaces the last error to the caller, and through it to the breaker.
func retryWithBackoff(ctx context.Context, cfg config.RetryConfig, fn func() error) error {
	var err error
	delay := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) || isBreakerOpen(err) {
			return err
		}

		if attempt < cfg.MaxAttempts-1 {
			wait := delay
			if cfg.MaxJitter > 0 {
				wait += time.Duration(rand.Int64N(int64(cfg.MaxJitter)))
			}
			if wait > cfg.MaxDelay {
				wait = cfg.MaxDelay
			}
			metrics.FetchRetries.Inc()
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", cfg.MaxAttempts).Dur("delay", wait).Msg("Retry attempt")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
