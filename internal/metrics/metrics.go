// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the sync engine:
// - Fetch latency and outcomes
// - Circuit breaker state machine
// - Rate gate budget enforcement
// - Record validation/deduplication outcomes
// - Tick scheduling

var (
	// Fetch Metrics
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsync_fetch_duration_seconds",
			Help:    "Duration of remote telemetry API fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"}, // "device_list", "positions"
	)

	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsync_fetch_requests_total",
			Help: "Total number of remote fetches by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_fetch_retries_total",
			Help: "Total number of backoff retries for failed fetches",
		},
	)

	InflightDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_inflight_deduped_total",
			Help: "Total number of fetches coalesced onto an identical in-flight request",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsync_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsync_circuit_breaker_requests_total",
			Help: "Total number of requests seen by the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsync_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures tracked by the breaker",
		},
		[]string{"name"},
	)

	// Rate Gate Metrics
	RateGateAllowed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_rate_gate_allowed_total",
			Help: "Total number of sends admitted by the rate gate",
		},
	)

	RateGateDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_rate_gate_denied_total",
			Help: "Total number of sends denied by the rate gate",
		},
	)

	// Record Pipeline Metrics
	RecordsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_records_accepted_total",
			Help: "Total number of position records accepted after validation",
		},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsync_records_rejected_total",
			Help: "Total number of position records rejected by validation",
		},
		[]string{"reason"}, // "missing_id", "coordinates", "stale", "future"
	)

	RecordsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_records_deduplicated_total",
			Help: "Total number of position records dropped as non-newer duplicates",
		},
	)

	SpeedClamped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_speed_clamped_total",
			Help: "Total number of position records whose speed was clamped to the ceiling",
		},
	)

	// Scheduler Metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsync_tick_duration_seconds",
			Help:    "Duration of orchestrator ticks in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsync_ticks_total",
			Help: "Total number of orchestrator ticks",
		},
	)

	DueDevices = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsync_due_devices",
			Help:    "Number of devices due for polling per tick",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50, 100, 250},
		},
	)

	ActiveDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsync_active_devices",
			Help: "Current number of devices tracked by the engine",
		},
	)

	DevicesByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsync_devices_by_state",
			Help: "Current number of devices per classified vehicle state",
		},
		[]string{"state"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsync_last_success_timestamp",
			Help: "Unix timestamp of the last successful position sync",
		},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsync_subscribers",
			Help: "Current number of registered subscription callbacks",
		},
	)
)

// ObserveFetch records the latency and outcome of one remote fetch.
func ObserveFetch(action string, duration time.Duration, err error) {
	FetchDuration.WithLabelValues(action).Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	FetchRequests.WithLabelValues(action, outcome).Inc()
}

// RecordSyncSuccess stamps the last-success gauge with the current time.
func RecordSyncSuccess() {
	SyncLastSuccess.SetToCurrentTime()
}
