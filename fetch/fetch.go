// Package fetch provides the rate-limited, retrying HTTP GET layer the
// scraper issues all of its page requests through.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Defaults applied by NewClient when the corresponding option is zero.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultInterval   = time.Second
	DefaultUserAgent  = "Mozilla/5.0 (compatible; newsdex/1.0)"
)

// Error is returned once the retry budget is exhausted. It carries the
// requested URL, the HTTP status of the final attempt (0 when the
// failure happened below the HTTP layer), and the number of attempts
// made.
type Error struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Client. Zero fields fall back to the defaults
// above.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Interval   time.Duration
	UserAgent  string
}

// Client issues GET requests with a shared inter-request throttle and a
// linear-backoff retry policy. One Client owns one Limiter, so all
// requests through the same client respect the same pacing.
type Client struct {
	httpClient *http.Client
	limiter    *Limiter
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// NewClient creates a client from the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	} else if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    NewLimiter(opts.Interval),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		userAgent:  opts.UserAgent,
	}
}

// Get fetches the page at url and returns its body as text. Every
// attempt waits on the client's limiter first. Failed attempts
// (transport errors, timeouts, and non-2xx statuses) are retried with a
// delay of RetryDelay times the attempt number; after MaxRetries
// attempts the last error is wrapped in an *Error and returned. Errors
// from earlier attempts are discarded.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &Error{URL: url, StatusCode: lastStatus, Attempts: attempt, Err: err}
		}

		body, status, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		lastStatus = status

		// Cancellation is not retryable.
		if ctx.Err() != nil {
			return "", &Error{URL: url, StatusCode: lastStatus, Attempts: attempt, Err: ctx.Err()}
		}

		if attempt < c.maxRetries {
			if err := sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return "", &Error{URL: url, StatusCode: lastStatus, Attempts: attempt, Err: err}
			}
		}
	}

	return "", &Error{URL: url, StatusCode: lastStatus, Attempts: c.maxRetries, Err: lastErr}
}

// get performs a single GET attempt.
func (c *Client) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
