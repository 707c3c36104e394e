// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetchOutcomes(t *testing.T) {
	successBefore := testutil.ToFloat64(FetchRequests.WithLabelValues("positions", "success"))
	failureBefore := testutil.ToFloat64(FetchRequests.WithLabelValues("positions", "failure"))

	ObserveFetch("positions", 5*time.Millisecond, nil)
	ObserveFetch("positions", 5*time.Millisecond, errors.New("boom"))
	ObserveFetch("positions", 5*time.Millisecond, nil)

	gotSuccess := testutil.ToFloat64(FetchRequests.WithLabelValues("positions", "success")) - successBefore
	gotFailure := testutil.ToFloat64(FetchRequests.WithLabelValues("positions", "failure")) - failureBefore

	if gotSuccess != 2 {
		t.Errorf("success count = %v, want 2", gotSuccess)
	}
	if gotFailure != 1 {
		t.Errorf("failure count = %v, want 1", gotFailure)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test-breaker").Set(2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 2 {
		t.Errorf("breaker state gauge = %v, want 2", got)
	}
}

func TestDueDevicesHistogramObserves(t *testing.T) {
	DueDevices.Observe(7)

	if got := testutil.CollectAndCount(DueDevices); got != 1 {
		t.Errorf("due-devices histogram series = %d, want 1", got)
	}
}

func TestRecordPipelineCounters(t *testing.T) {
	rejectedBefore := testutil.ToFloat64(RecordsRejected.WithLabelValues("stale"))
	RecordsRejected.WithLabelValues("stale").Inc()

	if got := testutil.ToFloat64(RecordsRejected.WithLabelValues("stale")) - rejectedBefore; got != 1 {
		t.Errorf("rejected counter delta = %v, want 1", got)
	}
}
