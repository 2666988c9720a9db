package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastOptions returns client options with throttling and backoff small
// enough for tests.
func fastOptions() Options {
	return Options{
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
		Interval:   -1, // disable throttling
	}
}

// TestGet_Success verifies a plain successful fetch
func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	body, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, body, "hello")
}

// TestGet_SetsUserAgent verifies the configured User-Agent is sent
func TestGet_SetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	opts := fastOptions()
	opts.UserAgent = "newsdex-test/1.0"
	client := NewClient(opts)
	_, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "newsdex-test/1.0", got)
}

// TestGet_RetriesExactlyN verifies the retry budget: a transport that
// always fails produces exactly MaxRetries attempts, and the final
// error names that count.
func TestGet_RetriesExactlyN(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	_, err := client.Get(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load(), "should attempt exactly MaxRetries times")
	assert.Contains(t, err.Error(), "after 3 attempts")

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Equal(t, server.URL, fetchErr.URL)
	assert.Equal(t, 3, fetchErr.Attempts)
}

// TestGet_SucceedsAfterRetry verifies transient failures are retried
func TestGet_SucceedsAfterRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	body, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "recovered", body)
	assert.Equal(t, int32(3), attempts.Load())
}

// TestGet_NotFoundCarriesStatus verifies non-2xx statuses surface in
// the wrapped error
func TestGet_NotFoundCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	_, err := client.Get(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

// TestGet_ContextCancelled verifies cancellation stops the retry loop
func TestGet_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(fastOptions())
	_, err := client.Get(ctx, server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestLimiter_EnforcesInterval verifies back-to-back calls are spaced
// by at least the configured interval
func TestLimiter_EnforcesInterval(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	// Small scheduling tolerance.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond,
		"second dispatch should wait out the interval")
}

// TestLimiter_FirstCallDoesNotBlock verifies the initial request is
// dispatched immediately
func TestLimiter_FirstCallDoesNotBlock(t *testing.T) {
	limiter := NewLimiter(time.Second)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

// TestLimiter_CancelledWhileWaiting verifies context cancellation
// interrupts the wait
func TestLimiter_CancelledWhileWaiting(t *testing.T) {
	limiter := NewLimiter(time.Second)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestLimiter_ZeroIntervalNeverBlocks verifies a disabled limiter
func TestLimiter_ZeroIntervalNeverBlocks(t *testing.T) {
	limiter := NewLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for range 5 {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
