package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestHTTPClient returns a client with millisecond backoff so retry tests stay fast
func newTestHTTPClient(maxRetries int) *HTTPClient {
	client := NewHTTPClient(5*time.Second, maxRetries, 50)
	client.SetBackoff(5*time.Millisecond, 20*time.Millisecond)
	return client
}

// TestNewHTTPClient verifies that NewHTTPClient creates a client with proper configuration
func TestNewHTTPClient(t *testing.T) {
	timeout := 30 * time.Second
	client := NewHTTPClient(timeout, 3, 5)

	if client == nil {
		t.Fatal("Expected NewHTTPClient to return non-nil client")
	}
	if client.client.Timeout != timeout {
		t.Errorf("Expected client timeout to be %v, got %v", timeout, client.client.Timeout)
	}
	if client.maxRetries != 3 {
		t.Errorf("Expected maxRetries to be 3, got %d", client.maxRetries)
	}
	if client.rateLimiter == nil {
		t.Error("Expected rateLimiter to be configured")
	}
	if client.initialDelay != time.Second || client.maxDelay != 60*time.Second {
		t.Errorf("Expected default backoff 1s/60s, got %v/%v", client.initialDelay, client.maxDelay)
	}
}

// TestNewHTTPClientClampsInvalidValues verifies non-positive limits are normalized
func TestNewHTTPClientClampsInvalidValues(t *testing.T) {
	client := NewHTTPClient(time.Second, -1, 0)
	if client.maxRetries != 0 {
		t.Errorf("Expected maxRetries to be clamped to 0, got %d", client.maxRetries)
	}
	if client.rateLimiter.Burst() != 1 {
		t.Errorf("Expected burst to be clamped to 1, got %d", client.rateLimiter.Burst())
	}
}

// TestHTTPClientSuccessfulFetch verifies that a successful HTTP request works and headers are forwarded
func TestHTTPClientSuccessfulFetch(t *testing.T) {
	var gotAccept, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test content"))
	}))
	defer server.Close()

	client := newTestHTTPClient(3)
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")

	body, err := client.Fetch(context.Background(), server.URL, header)
	if err != nil {
		t.Fatalf("Expected successful fetch, got error: %v", err)
	}
	if string(body) != "test content" {
		t.Errorf("Expected body to be 'test content', got '%s'", string(body))
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Expected Accept header to be forwarded, got %q", gotAccept)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("Expected User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}
}

// TestHTTPClientPostSendsBody verifies that Do forwards the method and body
func TestHTTPClientPostSendsBody(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestHTTPClient(0)
	body, err := client.Do(context.Background(), http.MethodPost, server.URL, nil, []byte(`{}`))
	if err != nil {
		t.Fatalf("Expected successful post, got error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST, got %s", gotMethod)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("Unexpected body: %s", body)
	}
}

// TestHTTPClientRetryOnFailure verifies that retries happen on 5xx
func TestHTTPClientRetryOnFailure(t *testing.T) {
	var attemptCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&attemptCount, 1)
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success after retries"))
	}))
	defer server.Close()

	client := newTestHTTPClient(3)
	body, err := client.Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Expected successful fetch after retries, got error: %v", err)
	}
	if string(body) != "success after retries" {
		t.Errorf("Expected body to be 'success after retries', got '%s'", string(body))
	}
	if atomic.LoadInt32(&attemptCount) != 3 {
		t.Errorf("Expected 3 attempts, got %d", atomic.LoadInt32(&attemptCount))
	}
}

// TestHTTPClientMaxRetriesExceeded verifies that max retries is enforced
func TestHTTPClientMaxRetriesExceeded(t *testing.T) {
	var attemptCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestHTTPClient(3)
	_, err := client.Fetch(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("Expected error after max retries exceeded, got nil")
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected wrapped StatusError 502, got %v", err)
	}

	// initial request + 3 retries
	if got := atomic.LoadInt32(&attemptCount); got != 4 {
		t.Errorf("Expected 4 attempts (1 initial + 3 retries), got %d", got)
	}
}

// TestHTTPClientNoRetryOnClientError verifies that 4xx responses fail immediately
func TestHTTPClientNoRetryOnClientError(t *testing.T) {
	var attemptCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	client := newTestHTTPClient(3)
	_, err := client.Fetch(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("Expected error for 404 response, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected IsNotFound to be true, got false for %v", err)
	}
	if got := atomic.LoadInt32(&attemptCount); got != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", got)
	}
}

// TestHTTPClientBackoff verifies that retry delays double and are capped
func TestHTTPClientBackoff(t *testing.T) {
	client := NewHTTPClient(time.Second, 10, 5)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{40, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := client.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// TestHTTPClientContextCancellation verifies that context cancellation is respected
func TestHTTPClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(10*time.Second, 3, 5)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := client.Fetch(ctx, server.URL, nil)
	if err == nil {
		t.Fatal("Expected context cancellation error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
}

// TestHTTPClientRetriesWaitOnRateLimiter verifies that a retry consumes a
// limiter token like the first attempt does
func TestHTTPClientRetriesWaitOnRateLimiter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestHTTPClient(2)
	// One token, refilled hourly: only the first attempt fits before the deadline.
	client.rateLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Fetch(ctx, server.URL, nil)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "rate limiter wait failed") {
		t.Errorf("Expected rate limiter error on retry, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 request before the limiter blocked, got %d", n)
	}
}

// TestHTTPClientInvalidURL verifies that invalid URLs are rejected
func TestHTTPClientInvalidURL(t *testing.T) {
	client := newTestHTTPClient(1)

	for _, url := range []string{"", "not-a-url", "://invalid"} {
		if _, err := client.Fetch(context.Background(), url, nil); err == nil {
			t.Errorf("Expected error for invalid URL '%s', got nil", url)
		}
	}
}

// TestStatusErrorMessage verifies the error text includes status and body
func TestStatusErrorMessage(t *testing.T) {
	tests := []struct {
		err  *StatusError
		want string
	}{
		{&StatusError{StatusCode: 404}, "client error: HTTP 404"},
		{&StatusError{StatusCode: 503, Body: "unavailable"}, "server error: HTTP 503: unavailable"},
		{&StatusError{StatusCode: 304}, "unexpected status: HTTP 304"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
