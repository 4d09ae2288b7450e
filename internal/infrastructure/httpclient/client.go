// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package httpclient is the retrying JSON transport shared by the outbound API clients.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
)

const (
	// DefaultClientTimeout is the default HTTP client timeout
	DefaultClientTimeout = 30 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// maxErrorBody caps how much of an error response is kept for logs and errors.
const maxErrorBody = 4096

// Config holds the configuration of a Client
type Config struct {
	// Service names the remote API in logs and errors
	Service string
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration. NoRetry disables retries entirely.
	MaxRetries        int
	NoRetry           bool
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Optional: authenticates every request with an OAuth2 bearer token
	TokenSource oauth2.TokenSource
	// Optional: base transport, defaults to http.DefaultTransport
	Transport http.RoundTripper
}

// Client performs JSON requests with retries on network errors, 5xx and 429.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a Client, filling defaults for unset config values.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.NoRetry {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var transport http.RoundTripper = otelhttp.NewTransport(base)
	if config.TokenSource != nil {
		transport = &oauth2.Transport{Base: transport, Source: config.TokenSource}
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout, Transport: transport},
		config:     config,
	}
}

// StatusError is returned for a non-2xx response once retries are exhausted.
type StatusError struct {
	Service    string
	StatusCode int
	// Detail is the error message extracted from the body, when it has one
	Detail string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s API error (status %d)", e.Service, e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	// Don't retry if context was cancelled
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	// Retry on server errors (5xx)
	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// Retry on rate limiting (429)
	return statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// Add jitter (±25% of backoff duration) to prevent thundering herd
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)
	if backoffWithJitter < c.config.InitialBackoff {
		backoffWithJitter = c.config.InitialBackoff
	}

	return backoffWithJitter
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.config.BaseURL + path
}

// Do sends the request with retries. The caller owns the returned body. A 4xx
// response is returned as is; a 5xx or 429 that survives every retry too.
func (c *Client) Do(ctx context.Context, method, path string, body any, header http.Header) (*http.Response, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		if jsonBody, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	url := c.resolve(path)
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		req, err := c.createRequest(ctx, method, url, jsonBody, header)
		if err != nil {
			return nil, err
		}

		if attempt > 0 {
			slog.DebugContext(ctx, "retrying API request",
				"service", c.config.Service, "method", method, "path", path,
				"attempt", attempt, "max_retries", c.config.MaxRetries)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err == nil && !shouldRetry(resp.StatusCode, nil) {
			slog.DebugContext(ctx, "API request completed",
				"service", c.config.Service, "method", method, "path", path,
				"status", resp.StatusCode, "duration", duration.String(), "attempt", attempt+1)
			return resp, nil
		}

		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		lastErr, lastResp = err, resp
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}

		if !shouldRetry(statusCode, err) {
			slog.ErrorContext(ctx, "API request failed (not retryable)",
				"service", c.config.Service, "method", method, "path", path,
				"duration", duration.String(), "attempt", attempt+1, logging.ErrKey, err)
			break
		}
		if attempt == c.config.MaxRetries {
			slog.ErrorContext(ctx, "API request failed after all retries",
				"service", c.config.Service, "method", method, "path", path,
				"status", statusCode, "attempts", attempt+1, logging.ErrKey, err)
			break
		}

		backoff := c.calculateBackoff(attempt)
		slog.WarnContext(ctx, "API request failed, retrying",
			"service", c.config.Service, "method", method, "path", path,
			"status", statusCode, "duration", duration.String(), "attempt", attempt+1,
			"backoff", backoff.String(), logging.ErrKey, err)

		// Wait with backoff, but check for context cancellation
		select {
		case <-ctx.Done():
			if lastResp != nil {
				_ = lastResp.Body.Close()
			}
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr != nil {
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		return nil, fmt.Errorf("%s request failed after %d attempts: %w", c.config.Service, c.config.MaxRetries+1, lastErr)
	}
	return lastResp, nil
}

// createRequest creates a new HTTP request with the given parameters
func (c *Client) createRequest(ctx context.Context, method, url string, jsonBody []byte, header http.Header) (*http.Request, error) {
	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// DoJSON sends body as JSON and decodes a 2xx response into out when out is not nil.
// Any other status becomes a *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any, header http.Header) error {
	resp, err := c.Do(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(ctx, method, path, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.config.Service, err)
	}
	return nil
}

// Fetch returns the raw body of a 2xx GET.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(ctx, http.MethodGet, url, resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.config.Service, err)
	}
	return data, nil
}

func (c *Client) checkStatus(ctx context.Context, method, path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{
		Service:    c.config.Service,
		StatusCode: resp.StatusCode,
		Detail:     parseErrorDetail(raw),
		Body:       string(raw),
	}
	slog.ErrorContext(ctx, "API error response",
		"service", c.config.Service, "method", method, "path", path,
		"status", resp.StatusCode, "body", se.Body, logging.ErrKey, se)
	return se
}

// parseErrorDetail extracts a message from the common error body shapes:
// {"detail": "..."}, {"message": "..."} and {"error": {"message": "..."}}.
func parseErrorDetail(body []byte) string {
	var errResp struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(errResp.Detail) > 0 {
		var s string
		if json.Unmarshal(errResp.Detail, &s) == nil {
			return s
		}
		return string(errResp.Detail)
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	if len(errResp.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(errResp.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(errResp.Error, &s) == nil {
			return s
		}
	}
	return ""
}
