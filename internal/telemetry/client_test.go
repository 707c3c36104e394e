// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/sync"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TelemetryConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestFetchDeviceList(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices" {
			t.Errorf("path = %q, want /api/devices", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"d1","name":"truck-1"},{"id":"d2","name":"van-2"}]`))
	})

	devices, err := c.FetchDeviceList(context.Background())
	if err != nil {
		t.Fatalf("FetchDeviceList() error = %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "d1" {
		t.Errorf("FetchDeviceList() = %+v, want d1 and d2", devices)
	}
}

func TestFetchPositionsQuery(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("device_ids"); got != "d1,d2" {
			t.Errorf("device_ids = %q, want %q", got, "d1,d2")
		}
		if got := q.Get("since"); got != "0042" {
			t.Errorf("since = %q, want %q", got, "0042")
		}
		_, _ = w.Write([]byte(`{"positions":[{"device_id":"d1","lat":52.0,"lon":4.0,"speed_kmh":30,"timestamp":1764576000000}],"cursor":"0043"}`))
	})

	batch, err := c.FetchPositions(context.Background(), []string{"d1", "d2"}, "0042")
	if err != nil {
		t.Fatalf("FetchPositions() error = %v", err)
	}
	if len(batch.Positions) != 1 || batch.Positions[0].DeviceID != "d1" {
		t.Errorf("positions = %+v, want one record for d1", batch.Positions)
	}
	if batch.Cursor != "0043" {
		t.Errorf("cursor = %q, want %q", batch.Cursor, "0043")
	}
}

func TestStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, sentinel: sync.ErrRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, sentinel: sync.ErrAuth},
		{name: "forbidden", status: http.StatusForbidden, sentinel: sync.ErrAuth},
		{name: "server error", status: http.StatusInternalServerError, sentinel: sync.ErrTransient},
		{name: "bad gateway", status: http.StatusBadGateway, sentinel: sync.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := c.FetchPositions(context.Background(), []string{"d1"}, "")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want wrapped %v", err, tt.sentinel)
			}
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(config.TelemetryConfig{URL: srv.URL, Timeout: time.Second})
	_, err := c.FetchDeviceList(context.Background())
	if !errors.Is(err, sync.ErrTransient) {
		t.Errorf("error = %v, want wrapped ErrTransient", err)
	}
}

func TestMalformedBodyIsTransient(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"positions": [truncated`))
	})
	_, err := c.FetchPositions(context.Background(), []string{"d1"}, "")
	if !errors.Is(err, sync.ErrTransient) {
		t.Errorf("error = %v, want wrapped ErrTransient", err)
	}
}
