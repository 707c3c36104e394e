// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package sync

import (
	"errors"
	"fmt"
)

// Error taxonomy for the engine. Collaborator implementations classify
// transport failures by wrapping one of these sentinels so the orchestrator
// can pick the right recovery strategy:
//
//   - ErrTransient: retried with exponential backoff, then surfaced to the
//     breaker
//   - ErrRateLimited: transient, but immediately widens the global interval
//     and counts against the breaker without local retries
//   - ErrAuth: never retried locally; the engine has no credential concept
//     and surfaces it to the caller
//
// Validation failures are per-record, never fatal, and tracked only in
// metrics; they have their own type below and never cross the engine
// boundary as errors.
var (
	ErrTransient   = errors.New("transient network error")
	ErrRateLimited = errors.New("rate limited by remote API")
	ErrAuth        = errors.New("authentication rejected")

	// ErrEngineStopped is returned by operations issued after Stop().
	ErrEngineStopped = errors.New("engine stopped")

	// ErrEmergencyStopped is returned while an operator-forced cooldown
	// is in effect. Distinct from the breaker's automatic open state.
	ErrEmergencyStopped = errors.New("emergency stop in effect")
)

// TransientError wraps err as a retryable transport failure.
func TransientError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// RateLimitError wraps err as a remote throttling response.
func RateLimitError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}

// AuthError wraps err as an authentication/authorization failure.
func AuthError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAuth, err)
}

// retryable reports whether an error is worth another attempt. Auth
// failures and rate-limit responses are not: retrying the former is
// pointless and retrying the latter makes the throttling worse.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) {
		return false
	}
	return true
}
