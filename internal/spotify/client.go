// Package spotify provides a client for the Spotify Web API endpoints
// used by the profile pipeline: recently-played history and artist
// genre lookups.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stylisten/stylisten/internal/metrics"
)

const (
	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	userAgent = "stylisten/1.0"
)

// Sentinel errors.
var (
	// ErrRateLimited is returned by a single request that received a
	// 429 response. The client retries these internally.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUpstream is returned when the Spotify API fails in a way the
	// retry budget cannot absorb. Callers treat it as a dependency
	// failure, not a caller error.
	ErrUpstream = errors.New("spotify api unavailable")
)

// Client is a Spotify Web API client with bounded retry on rate
// limiting. It is stateless across calls; pagination cursors are
// threaded by the caller.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	log         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the retry budget for rate-limited requests and the
// initial backoff, which doubles per attempt.
func WithRetry(maxRetries int, backoffBase time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoffBase = backoffBase
	}
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Spotify API client. By default it retries
// rate-limited requests up to 3 times with backoff starting at 1s.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     DefaultBaseURL,
		maxRetries:  3,
		backoffBase: 1 * time.Second,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs an authenticated GET with retry on rate limiting and
// decodes the response body into v. Non-rate-limit failures are not
// retried. The overall context deadline bounds the backoff waits.
func (c *Client) getJSON(ctx context.Context, reqURL, accessToken string, v any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RateLimitRetries.Inc()
			delay := c.backoffBase << (attempt - 1)
			c.log.Warn("rate limited, backing off",
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL, accessToken)
		if err == nil {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("%w: parsing response: %v", ErrUpstream, err)
			}
			return nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		// Non-retryable
		return err
	}

	return fmt.Errorf("%w: retries exhausted: %v", ErrUpstream, lastErr)
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
