// Package fetcher provides the HTTP plumbing used to talk to the GitHub REST API:
// a client with timeout, retry with exponential backoff and rate limiting, plus
// authentication strategies for anonymous, token and GitHub App access.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "al-go-mcp-server/1.0.0"

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	kind := "unexpected status"
	switch {
	case e.StatusCode >= 400 && e.StatusCode < 500:
		kind = "client error"
	case e.StatusCode >= 500:
		kind = "server error"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", kind, e.StatusCode, e.Body)
}

// HTTPClient provides HTTP client functionality with timeout, retry logic, and rate limiting
type HTTPClient struct {
	client       *http.Client
	maxRetries   int
	rateLimiter  *rate.Limiter
	initialDelay time.Duration
	maxDelay     time.Duration
	userAgent    string
}

// NewHTTPClient creates a new HTTP client with the specified timeout, max retries, and max concurrent requests.
// The client implements exponential backoff retry mechanism and rate limiting for concurrent requests.
//
// Parameters:
//   - timeout: HTTP request timeout duration
//   - maxRetries: Maximum number of retry attempts (not including the initial request)
//   - maxConcurrent: Maximum number of requests per second (also used as the burst size)
func NewHTTPClient(timeout time.Duration, maxRetries int, maxConcurrent int) *HTTPClient {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &HTTPClient{
		client:       &http.Client{Timeout: timeout},
		maxRetries:   maxRetries,
		rateLimiter:  rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
		initialDelay: 1 * time.Second,
		maxDelay:     60 * time.Second,
		userAgent:    DefaultUserAgent,
	}
}

// SetBackoff overrides the initial and maximum retry delays.
func (c *HTTPClient) SetBackoff(initial, limit time.Duration) {
	c.initialDelay = initial
	c.maxDelay = limit
}

// SetUserAgent overrides the User-Agent header.
func (c *HTTPClient) SetUserAgent(ua string) {
	if ua != "" {
		c.userAgent = ua
	}
}

// Fetch performs a GET request against url with the given headers.
func (c *HTTPClient) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, url, header, nil)
}

// Do executes a request with retry logic and rate limiting.
// Delays start at the initial backoff and double on each retry, capped at the max delay.
// Retries on 5xx errors and network errors, but not on 4xx client errors.
// Every attempt, retries included, waits on the rate limiter.
func (c *HTTPClient) Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: trimBody(respBody)}
		if resp.StatusCode >= 500 {
			lastErr = statusErr
			continue
		}
		return nil, statusErr
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	if attempt > 31 {
		return c.maxDelay
	}
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initialDelay
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

// trimBody keeps error bodies short enough to surface in tool results.
func trimBody(b []byte) string {
	const limit = 512
	s := string(bytes.TrimSpace(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
