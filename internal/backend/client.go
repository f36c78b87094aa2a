// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the AIOps platform's AI plugin API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/aideck/internal/settings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Status  int
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNetwork
	ErrTypeTimeout
	ErrTypeConflict
	ErrTypeNotFound
	ErrTypeUnauthorized
	ErrTypeServer
	ErrTypeInvalidResponse
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNetwork:
		return "network"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeConflict:
		return "conflict"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeUnauthorized:
		return "unauthorized"
	case ErrTypeServer:
		return "server"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8080.
	BaseURL string

	// APIKey is sent as X-API-KEY when set.
	APIKey string

	// Timeout for every request (default: 15s)
	Timeout time.Duration

	// WriteRate caps settings writes per second (default: 10, burst 10).
	// Zero means the default; negative disables the limit.
	WriteRate float64
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   "http://127.0.0.1:8080",
		Timeout:   15 * time.Second,
		WriteRate: 10,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client implements the settings writer and poller fetcher over HTTP.
// It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	base       *url.URL
	httpClient *http.Client
	writes     *rate.Limiter
}

// NewClient creates a client, filling zero fields with defaults.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.WriteRate == 0 {
		config.WriteRate = 10
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", config.BaseURL)
	}

	c := &Client{
		config:     config,
		base:       base,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
	if config.WriteRate > 0 {
		c.writes = rate.NewLimiter(rate.Limit(config.WriteRate), int(config.WriteRate)+1)
	}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// statsResponse is the body of GET /ai/stats.
type statsResponse struct {
	AlgorithmConfigs []settings.AlgorithmConfig `json:"algorithm_configs"`
}

// FetchAlgorithmStats returns every algorithm config. It is read-only and
// safe to poll.
func (c *Client) FetchAlgorithmStats(ctx context.Context) ([]settings.AlgorithmConfig, error) {
	var out statsResponse
	if err := c.do(ctx, http.MethodGet, "/ai/stats", nil, &out); err != nil {
		return nil, err
	}
	return out.AlgorithmConfigs, nil
}

// UpdateAlgorithmSettings replaces an algorithm's config. Sending the same
// config twice has the same effect as sending it once.
func (c *Client) UpdateAlgorithmSettings(ctx context.Context, algorithmID string, cfg settings.AlgorithmConfig) (settings.AlgorithmConfig, error) {
	if c.writes != nil {
		if err := c.writes.Wait(ctx); err != nil {
			return settings.AlgorithmConfig{}, &ClientError{Type: ErrTypeTimeout, Message: "write rate limited", Cause: err}
		}
	}

	body, err := json.Marshal(cfg)
	if err != nil {
		return settings.AlgorithmConfig{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal config", Cause: err}
	}

	var out settings.AlgorithmConfig
	path := "/ai/" + url.PathEscape(algorithmID) + "/settings"
	if err := c.do(ctx, http.MethodPut, path, body, &out); err != nil {
		return settings.AlgorithmConfig{}, err
	}
	return out, nil
}

// do sends a request and decodes a JSON response into out. An empty body
// leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return &ClientError{Type: ErrTypeNetwork, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-API-KEY", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &ClientError{Type: ErrTypeNetwork, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Status: resp.StatusCode, Cause: err}
	}
	return nil
}

// apiError is the error body the platform returns.
type apiError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func statusError(method, path string, status int, body []byte) error {
	msg := fmt.Sprintf("%s %s: %d %s", method, path, status, http.StatusText(status))
	var ae apiError
	if json.Unmarshal(body, &ae) == nil {
		for _, s := range []string{ae.Detail, ae.Message, ae.Error} {
			if s != "" {
				msg += ": " + s
				break
			}
		}
	}

	t := ErrTypeServer
	switch {
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		t = ErrTypeConflict
	case status == http.StatusNotFound:
		t = ErrTypeNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrTypeUnauthorized
	case status >= 400 && status < 500:
		t = ErrTypeInvalidResponse
	}
	return &ClientError{Type: t, Message: msg, Status: status}
}

func transportError(method, path string, err error) error {
	msg := method + " " + path
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: msg + ": timed out", Cause: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: msg + ": timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeNetwork, Message: msg + ": backend unreachable", Cause: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the backend rejected a write as stale.
func IsConflict(err error) bool {
	return hasType(err, ErrTypeConflict)
}

// IsNetwork reports whether err is any backend failure other than a
// conflict: transport, timeout or non-2xx status.
func IsNetwork(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type != ErrTypeConflict
}

// IsTimeout reports whether the request timed out.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

func hasType(err error, t ErrorType) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == t
}
