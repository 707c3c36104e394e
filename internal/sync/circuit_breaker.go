// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
	"github.com/tomtom215/fleetsync/internal/models"
)

// Ensure BreakerClient implements TelemetryClient
var _ TelemetryClient = (*BreakerClient)(nil)

// BreakerClient wraps a TelemetryClient with circuit breaker protection.
// Prevents hammering the telemetry backend while it is down: after a run
// of consecutive failures the circuit opens and requests are rejected
// locally, without touching the network, until the cooldown elapses.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its cooldown. This is intentional for production resilience.
type BreakerClient struct {
	client TelemetryClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures after which
	// the circuit opens.
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open before admitting a
	// single probe request.
	Cooldown time.Duration
}

// NewBreakerClient wraps client with a circuit breaker.
// Circuit breaker configuration:
// - Opens after FailureThreshold consecutive failures
// - Stays open for Cooldown, then admits exactly one probe (half-open)
// - A successful probe closes the circuit; a failed probe reopens it
func NewBreakerClient(client TelemetryClient, cfg BreakerConfig) *BreakerClient {
	cbName := "telemetry-api"
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1, // single probe in half-open state
		Timeout:     cooldown,

		// ReadyToTrip opens the circuit on a run of consecutive failures.
		// Any success resets the run via gobreaker's own counting.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold

			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening telemetry circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] Telemetry state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a telemetry call with circuit breaker protection
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			return nil, err
		}
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		counts := bc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(0)

	return result, nil
}

// FetchDeviceList retrieves the device inventory with circuit breaker protection.
func (bc *BreakerClient) FetchDeviceList(ctx context.Context) ([]models.Device, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.FetchDeviceList(ctx)
	})
	if err != nil {
		return nil, err
	}
	devices, ok := result.([]models.Device)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for FetchDeviceList")
	}
	return devices, nil
}

// FetchPositions retrieves position records with circuit breaker protection.
func (bc *BreakerClient) FetchPositions(ctx context.Context, deviceIDs []string, sinceCursor models.SyncCursor) (*models.PositionBatch, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.FetchPositions(ctx, deviceIDs, sinceCursor)
	})
	if err != nil {
		return nil, err
	}
	batch, ok := result.(*models.PositionBatch)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for FetchPositions")
	}
	return batch, nil
}

// State returns the current circuit state in domain terms.
func (bc *BreakerClient) State() models.CircuitState {
	switch bc.cb.State() {
	case gobreaker.StateOpen:
		return models.CircuitOpen
	case gobreaker.StateHalfOpen:
		return models.CircuitHalfOpen
	default:
		return models.CircuitClosed
	}
}

// Counts exposes the underlying breaker counters for status reporting.
func (bc *BreakerClient) Counts() gobreaker.Counts {
	return bc.cb.Counts()
}

// isBreakerOpen reports whether err is the breaker's local rejection,
// meaning no network call was made.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToString converts gobreaker state to a metric label value
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts gobreaker state to a numeric gauge value
// 0 = closed, 1 = half-open, 2 = open
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
