// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetsync/config.yaml",
	"/etc/fleetsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Telemetry: TelemetryConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			TickInterval:       5 * time.Second,
			DeviceListInterval: 5 * time.Minute,
			InactiveAfter:      30 * time.Minute,
			HighPriorityBatch:  20,
			LowPriorityBatch:   30,
		},
		RateGate: RateGateConfig{
			MaxRequests: 30,
			Window:      time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			MaxJitter:   time.Second,
		},
		Classifier: ClassifierConfig{
			MovingSpeedKmh:   5.0,
			OfflineAfter:     5 * time.Minute,
			SpeedHistorySize: 5,
			EscalateAfter:    3,
			EscalationFactor: 1.5,
		},
		Intervals: IntervalsConfig{
			Moving:  StateIntervalConfig{Base: 30 * time.Second, Max: 45 * time.Second},
			Idling:  StateIntervalConfig{Base: time.Minute, Max: 3 * time.Minute},
			Parked:  StateIntervalConfig{Base: 5 * time.Minute, Max: 10 * time.Minute},
			Offline: StateIntervalConfig{Base: 10 * time.Minute, Max: 30 * time.Minute},

			Baseline:        30 * time.Second,
			LightLoad:       20 * time.Second,
			LightLoadBelow:  10,
			HighLoad:        45 * time.Second,
			HighLoadAbove:   50,
			FailureRateHigh: 0.3,
		},
		Validator: ValidatorConfig{
			AcceptPast:     time.Hour,
			AcceptFuture:   time.Minute,
			DedupeCapacity: 10000,
			DedupeTTL:      2 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values above
//  2. Config file: optional YAML file, if one exists
//  3. Environment variables: override any setting
//
// The loaded config is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - TELEMETRY_URL        -> telemetry.url
//   - RATE_GATE_MAX_REQUESTS -> rate_gate.max_requests
//   - BREAKER_COOLDOWN     -> breaker.cooldown
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// envMappings enumerates the recognized environment variables. Unknown
// variables are ignored rather than guessed at, so unrelated process
// environment never leaks into the config tree.
var envMappings = map[string]string{
	"telemetry_url":     "telemetry.url",
	"telemetry_api_key": "telemetry.api_key",
	"telemetry_timeout": "telemetry.timeout",

	"engine_tick_interval":        "engine.tick_interval",
	"engine_device_list_interval": "engine.device_list_interval",
	"engine_inactive_after":       "engine.inactive_after",
	"engine_high_priority_batch":  "engine.high_priority_batch",
	"engine_low_priority_batch":   "engine.low_priority_batch",

	"rate_gate_max_requests": "rate_gate.max_requests",
	"rate_gate_window":       "rate_gate.window",

	"breaker_failure_threshold": "breaker.failure_threshold",
	"breaker_cooldown":          "breaker.cooldown",

	"retry_max_attempts": "retry.max_attempts",
	"retry_base_delay":   "retry.base_delay",
	"retry_max_delay":    "retry.max_delay",
	"retry_max_jitter":   "retry.max_jitter",

	"classifier_moving_speed_kmh":   "classifier.moving_speed_kmh",
	"classifier_offline_after":      "classifier.offline_after",
	"classifier_speed_history_size": "classifier.speed_history_size",
	"classifier_escalate_after":     "classifier.escalate_after",
	"classifier_escalation_factor":  "classifier.escalation_factor",

	"intervals_moving_base":       "intervals.moving.base",
	"intervals_moving_max":        "intervals.moving.max",
	"intervals_idling_base":       "intervals.idling.base",
	"intervals_idling_max":        "intervals.idling.max",
	"intervals_parked_base":       "intervals.parked.base",
	"intervals_parked_max":        "intervals.parked.max",
	"intervals_offline_base":      "intervals.offline.base",
	"intervals_offline_max":       "intervals.offline.max",
	"intervals_baseline":          "intervals.baseline",
	"intervals_light_load":        "intervals.light_load",
	"intervals_light_load_below":  "intervals.light_load_below",
	"intervals_high_load":         "intervals.high_load",
	"intervals_high_load_above":   "intervals.high_load_above",
	"intervals_failure_rate_high": "intervals.failure_rate_high",

	"validator_accept_past":     "validator.accept_past",
	"validator_accept_future":   "validator.accept_future",
	"validator_dedupe_capacity": "validator.dedupe_capacity",
	"validator_dedupe_ttl":      "validator.dedupe_ttl",

	"server_host":              "server.host",
	"server_port":              "server.port",
	"server_timeout":           "server.timeout",
	"server_rate_limit_reqs":   "server.rate_limit_reqs",
	"server_rate_limit_window": "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}
