package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/medical-research-service/internal/domain"
)

// HTTPClientConfig configures the shared HTTP client.
type HTTPClientConfig struct {
	// SourceName identifies the source in rate-limit errors.
	SourceName string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts after the first
	// request. Only 429 responses are retried.
	MaxRetries int

	// RetryDelay is the initial backoff delay; it doubles per attempt.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g. "X-ELS-APIKey").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and bounded retries.
// It is safe for concurrent use.
//
// Retry policy: only 429 (Too Many Requests) responses are retried, with
// exponential backoff starting at RetryDelay and doubling per attempt,
// honoring a larger Retry-After header when the upstream provides one.
// Any other response, including 5xx, is returned to the caller immediately.
// Retries for one request are sequential and never overlap.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	// Apply defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-MedicalResearchService/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and 429-only retries.
// It waits for the rate limiter before each attempt and sets the User-Agent
// and optional API key headers.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	delay := c.config.RetryDelay
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		retryDelay := retryAfterDelay(resp, delay)

		// Drain and close before retrying so the connection can be reused.
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if attempt >= c.config.MaxRetries {
			return nil, domain.NewRateLimitedError(c.config.SourceName, attempt+1, retryDelay)
		}

		if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
			return nil, err
		}
		if err := c.resetRequestBody(req); err != nil {
			return nil, fmt.Errorf("cannot retry request: %w", err)
		}
		delay *= 2
	}
}

// retryAfterDelay picks the wait before the next attempt: the Retry-After
// header when it asks for more than the backoff, the backoff otherwise.
func retryAfterDelay(resp *http.Response, backoff time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return backoff
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if d := time.Duration(seconds) * time.Second; d > backoff {
			return d
		}
		return backoff
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > backoff {
			return d
		}
	}

	return backoff
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
