// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"sync/atomic"
	"time"

	"github.com/tomtom215/fleetsync/internal/cache"
	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/logging"
	"github.com/tomtom215/fleetsync/internal/metrics"
	"github.com/tomtom215/fleetsync/internal/models"
	"github.com/tomtom215/fleetsync/internal/validation"
)

// RecordValidator filters incoming position records. A record passes when
// its device id and coordinates are present and in range and its timestamp
// falls inside the acceptance window; excessive speed is clamped rather than
// rejected. Accepted records are then deduplicated against the last accepted
// timestamp per device: only strictly newer records survive.
//
// Rejections and duplicate drops are never errors. They are counted in
// metrics and the batch continues.
type RecordValidator struct {
	cfg      config.ValidatorConfig
	lastSeen *cache.TimestampLRU

	accepted  atomic.Int64
	rejected  atomic.Int64
	duplicate atomic.Int64

	now func() time.Time // injectable for tests
}

// NewRecordValidator creates a validator with the given acceptance window.
// The dedup TTL is floored at the acceptance window: an entry that expired
// earlier would let an older in-window record through as fresh.
func NewRecordValidator(cfg config.ValidatorConfig) *RecordValidator {
	ttl := cfg.DedupeTTL
	if window := cfg.AcceptPast + cfg.AcceptFuture; ttl < window {
		ttl = window
	}
	return &RecordValidator{
		cfg:      cfg,
		lastSeen: cache.NewTimestampLRU(cfg.DedupeCapacity, ttl),
		now:      time.Now,
	}
}

// Accept validates and deduplicates one record. It returns the record
// (speed possibly clamped) and true when the record should be ingested.
func (v *RecordValidator) Accept(rec models.PositionRecord) (models.PositionRecord, bool) {
	if se := validation.ValidateStruct(rec); se != nil {
		reason := "coordinates"
		switch {
		case se.HasField("DeviceID"):
			reason = "missing_id"
		case se.HasField("Timestamp"):
			reason = "missing_timestamp"
		}
		metrics.RecordsRejected.WithLabelValues(reason).Inc()
		v.rejected.Add(1)
		logging.Debug().Str("device", rec.DeviceID).Err(se).Msg("Position record rejected")
		return rec, false
	}

	now := v.now()
	ts := rec.Time()
	if ts.Before(now.Add(-v.cfg.AcceptPast)) {
		metrics.RecordsRejected.WithLabelValues("stale").Inc()
		v.rejected.Add(1)
		return rec, false
	}
	if ts.After(now.Add(v.cfg.AcceptFuture)) {
		metrics.RecordsRejected.WithLabelValues("future").Inc()
		v.rejected.Add(1)
		return rec, false
	}

	if rec.SpeedKmh > models.MaxSpeedKmh {
		rec.SpeedKmh = models.MaxSpeedKmh
		metrics.SpeedClamped.Inc()
	}
	if rec.SpeedKmh < 0 {
		rec.SpeedKmh = 0
		metrics.SpeedClamped.Inc()
	}

	// Dedup: keep only records strictly newer than the device's last
	// accepted fix. Equal timestamps are duplicates.
	if last, ok := v.lastSeen.Get(rec.DeviceID); ok && !ts.After(last) {
		metrics.RecordsDeduplicated.Inc()
		v.duplicate.Add(1)
		return rec, false
	}
	v.lastSeen.Add(rec.DeviceID, ts)

	metrics.RecordsAccepted.Inc()
	v.accepted.Add(1)
	return rec, true
}

// FilterBatch runs Accept over a batch, returning the surviving records in
// their original order.
func (v *RecordValidator) FilterBatch(records []models.PositionRecord) []models.PositionRecord {
	out := make([]models.PositionRecord, 0, len(records))
	for _, rec := range records {
		if accepted, ok := v.Accept(rec); ok {
			out = append(out, accepted)
		}
	}
	return out
}

// Stats exposes the validator's share of the engine cache stats: tracked
// device count plus the accept/reject/duplicate counters.
func (v *RecordValidator) Stats() models.CacheStats {
	return models.CacheStats{
		TrackedDevices:   v.lastSeen.Len(),
		RecordsAccepted:  v.accepted.Load(),
		RecordsRejected:  v.rejected.Load(),
		RecordsDuplicate: v.duplicate.Load(),
	}
}

// Reset clears the dedup bookkeeping. Used when the engine is reset and
// history must not suppress re-ingested records.
func (v *RecordValidator) Reset() {
	v.lastSeen.Clear()
}
