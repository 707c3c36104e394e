// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

/*
client.go - Telemetry backend REST client

This file implements the HTTP collaborator the engine polls: a thin REST
client for the fleet telemetry backend. It owns transport, credentials,
and response decoding; scheduling and budgets live in the engine.
*/

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetsync/internal/config"
	"github.com/tomtom215/fleetsync/internal/models"
	"github.com/tomtom215/fleetsync/internal/sync"
)

// Ensure Client implements the engine's collaborator interface
var _ sync.TelemetryClient = (*Client)(nil)

// Client provides access to the telemetry backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// positionsResponse is the wire shape of the incremental positions fetch.
type positionsResponse struct {
	Positions []models.PositionRecord `json:"positions"`
	Cursor    string                  `json:"cursor"`
}

// NewClient creates a telemetry API client.
//
// Parameters:
//   - cfg.URL: backend base URL (e.g. https://telemetry.example.com)
//   - cfg.APIKey: bearer token for the backend
//   - cfg.Timeout: per-request timeout
func NewClient(cfg config.TelemetryConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchDeviceList retrieves the full device roster.
func (c *Client) FetchDeviceList(ctx context.Context) ([]models.Device, error) {
	resp, err := c.doRequest(ctx, "/api/devices", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var devices []models.Device
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return nil, sync.TransientError(fmt.Errorf("failed to decode device list: %w", err))
	}
	return devices, nil
}

// FetchPositions retrieves position records for the given devices newer
// than sinceCursor, plus the server's next cursor.
func (c *Client) FetchPositions(ctx context.Context, deviceIDs []string, sinceCursor models.SyncCursor) (*models.PositionBatch, error) {
	params := url.Values{}
	if len(deviceIDs) > 0 {
		params.Set("device_ids", strings.Join(deviceIDs, ","))
	}
	if sinceCursor != "" {
		params.Set("since", string(sinceCursor))
	}

	resp, err := c.doRequest(ctx, "/api/positions", params)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var body positionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, sync.TransientError(fmt.Errorf("failed to decode positions: %w", err))
	}
	return &models.PositionBatch{
		Positions: body.Positions,
		Cursor:    models.SyncCursor(body.Cursor),
	}, nil
}

// doRequest issues an authenticated GET against the backend.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation is the caller's decision, not a backend fault.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, sync.TransientError(err)
	}
	return resp, nil
}

// classifyStatus maps HTTP status codes onto the engine's error taxonomy.
// The response body is consumed on error so the connection can be reused.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return sync.RateLimitError(err)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return sync.AuthError(err)
	default:
		return sync.TransientError(err)
	}
}
