// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package config

import "time"

// Config holds all application configuration.
//
// Loading order (Koanf v2, highest priority wins):
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Engine     EngineConfig     `koanf:"engine"`
	RateGate   RateGateConfig   `koanf:"rate_gate"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Retry      RetryConfig      `koanf:"retry"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Intervals  IntervalsConfig  `koanf:"intervals"`
	Validator  ValidatorConfig  `koanf:"validator"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// TelemetryConfig holds the remote telemetry API connection settings used by
// the bundled HTTP client. The engine itself only sees the client interface;
// deployments with a custom collaborator can leave this section empty.
type TelemetryConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// EngineConfig holds the orchestrator scheduling settings.
type EngineConfig struct {
	// TickInterval is the orchestrator's scheduling quantum. Per-device
	// polling intervals are multiples of it in practice.
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
	// DeviceListInterval is how often the device list is refreshed wholesale.
	DeviceListInterval time.Duration `koanf:"device_list_interval" validate:"gt=0"`
	// InactiveAfter drops devices from the roster whose last activity is
	// older than this cutoff. They are re-admitted on a later refresh if
	// they come back.
	InactiveAfter time.Duration `koanf:"inactive_after" validate:"gt=0"`
	// HighPriorityBatch caps batch size for MOVING/IDLING devices.
	HighPriorityBatch int `koanf:"high_priority_batch" validate:"gt=0"`
	// LowPriorityBatch caps batch size for PARKED/OFFLINE devices.
	LowPriorityBatch int `koanf:"low_priority_batch" validate:"gt=0"`
}

// RateGateConfig bounds outbound request volume.
type RateGateConfig struct {
	MaxRequests int           `koanf:"max_requests" validate:"gt=0"`
	Window      time.Duration `koanf:"window" validate:"gt=0"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int `koanf:"failure_threshold" validate:"gt=0"`
	// Cooldown is how long the circuit stays open before permitting a
	// single half-open probe.
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`
}

// RetryConfig holds the backoff policy applied to failed fetches before a
// failure is surfaced to the breaker.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `koanf:"max_delay" validate:"gt=0"`
	MaxJitter   time.Duration `koanf:"max_jitter" validate:"gte=0"`
}

// ClassifierConfig holds the vehicle state machine thresholds.
type ClassifierConfig struct {
	// MovingSpeedKmh is the speed above which a device is MOVING.
	MovingSpeedKmh float64 `koanf:"moving_speed_kmh" validate:"gt=0"`
	// OfflineAfter is the position-report age beyond which a device is
	// OFFLINE regardless of reported speed.
	OfflineAfter time.Duration `koanf:"offline_after" validate:"gt=0"`
	// SpeedHistorySize bounds the recent-speed ring used for the
	// IDLING-vs-PARKED decision.
	SpeedHistorySize int `koanf:"speed_history_size" validate:"gt=0"`
	// EscalateAfter is the number of consecutive non-moving cycles before
	// interval escalation kicks in.
	EscalateAfter int `koanf:"escalate_after" validate:"gt=0"`
	// EscalationFactor multiplies the interval on each escalation, capped
	// at the state's max interval.
	EscalationFactor float64 `koanf:"escalation_factor" validate:"gt=1"`
}

// StateIntervalConfig is the base/max polling interval pair for one state.
type StateIntervalConfig struct {
	Base time.Duration `koanf:"base" validate:"gt=0"`
	Max  time.Duration `koanf:"max" validate:"gt=0"`
}

// IntervalsConfig holds per-state polling intervals plus the global
// load-adaptive tiers.
type IntervalsConfig struct {
	Moving  StateIntervalConfig `koanf:"moving"`
	Idling  StateIntervalConfig `koanf:"idling"`
	Parked  StateIntervalConfig `koanf:"parked"`
	Offline StateIntervalConfig `koanf:"offline"`

	// Baseline is the global recommended interval under normal load.
	Baseline time.Duration `koanf:"baseline" validate:"gt=0"`
	// LightLoad applies below LightLoadBelow active devices.
	LightLoad      time.Duration `koanf:"light_load" validate:"gt=0"`
	LightLoadBelow int           `koanf:"light_load_below" validate:"gt=0"`
	// HighLoad applies above HighLoadAbove active devices or when the
	// recent failure rate exceeds FailureRateHigh.
	HighLoad        time.Duration `koanf:"high_load" validate:"gt=0"`
	HighLoadAbove   int           `koanf:"high_load_above" validate:"gt=0"`
	FailureRateHigh float64       `koanf:"failure_rate_high" validate:"gt=0,lte=1"`
}

// ValidatorConfig holds the record acceptance window and dedup bookkeeping.
type ValidatorConfig struct {
	// AcceptPast is how far in the past a record timestamp may lie.
	AcceptPast time.Duration `koanf:"accept_past" validate:"gt=0"`
	// AcceptFuture is how much clock skew into the future is tolerated.
	AcceptFuture time.Duration `koanf:"accept_future" validate:"gt=0"`
	// DedupeCapacity bounds the per-device last-fix LRU.
	DedupeCapacity int `koanf:"dedupe_capacity" validate:"gt=0"`
	// DedupeTTL ages out bookkeeping for devices that stop reporting.
	DedupeTTL time.Duration `koanf:"dedupe_ttl" validate:"gt=0"`
}

// ServerConfig holds the operational HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
