// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package config

import (
	"fmt"

	"github.com/tomtom215/fleetsync/internal/validation"
)

// Validate checks that the configuration is internally consistent. Field
// ranges are enforced by validator tags; cross-field rules that tags cannot
// express are checked by hand.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateIntervals(); err != nil {
		return err
	}

	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay (%s) must not exceed retry.max_delay (%s)",
			c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	if c.Intervals.LightLoadBelow >= c.Intervals.HighLoadAbove {
		return fmt.Errorf("intervals.light_load_below (%d) must be below intervals.high_load_above (%d)",
			c.Intervals.LightLoadBelow, c.Intervals.HighLoadAbove)
	}

	if c.Validator.DedupeTTL < c.Validator.AcceptPast+c.Validator.AcceptFuture {
		return fmt.Errorf("validator.dedupe_ttl (%s) must cover the acceptance window (%s), or expired dedup entries re-admit older records",
			c.Validator.DedupeTTL, c.Validator.AcceptPast+c.Validator.AcceptFuture)
	}

	if c.Engine.TickInterval > c.Intervals.Moving.Base {
		return fmt.Errorf("engine.tick_interval (%s) must not exceed intervals.moving.base (%s), or moving devices cannot be polled on schedule",
			c.Engine.TickInterval, c.Intervals.Moving.Base)
	}

	return nil
}

// validateIntervals ensures every per-state base does not exceed its max.
func (c *Config) validateIntervals() error {
	pairs := []struct {
		name string
		cfg  StateIntervalConfig
	}{
		{"moving", c.Intervals.Moving},
		{"idling", c.Intervals.Idling},
		{"parked", c.Intervals.Parked},
		{"offline", c.Intervals.Offline},
	}

	for _, p := range pairs {
		if p.cfg.Base > p.cfg.Max {
			return fmt.Errorf("intervals.%s.base (%s) must not exceed intervals.%s.max (%s)",
				p.name, p.cfg.Base, p.name, p.cfg.Max)
		}
	}
	return nil
}
