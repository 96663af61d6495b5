// Package usgs queries the USGS FDSN event web service for CSV catalogs.
package usgs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/couchcryptid/quake-trends/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrRetriesExhausted wraps the last failure once every attempt is used.
	ErrRetriesExhausted = errors.New("usgs query retries exhausted")
	// ErrRequestRejected marks a 4xx response other than 429. It is not retried.
	ErrRequestRejected = errors.New("usgs query rejected")
)

// maxErrorBody bounds how much of an error response ends up in the error text.
const maxErrorBody = 512

// RetryPolicy bounds the attempts of one query.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// Client fetches event catalogs from the USGS event query endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      RetryPolicy
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces the clock used for backoff waits and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a query client from the endpoint, timeout, and retry
// settings in cfg.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		retry: RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			InitialWait: cfg.RetryInitialWait,
			MaxWait:     cfg.RetryMaxWait,
		},
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the request URL for params. Parameters keep their order.
func (c *Client) URL(params domain.Params) string {
	return c.endpoint + "?format=csv&" + params.Encode()
}

// Query fetches the catalog matching params. An empty parameter list is
// logged and yields a nil catalog without contacting the service. A query
// with no matches yields an empty catalog with the standard header.
func (c *Client) Query(ctx context.Context, params domain.Params) (*domain.Catalog, error) {
	if len(params) == 0 {
		c.logger.Warn("no query arguments specified")
		return nil, nil
	}

	u := c.URL(params)
	wait := c.retry.InitialWait
	attempts := max(c.retry.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		catalog, err := c.fetch(ctx, u)
		if err == nil {
			return catalog, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("usgs query: %w", ctx.Err())
		}
		if errors.Is(err, ErrRequestRejected) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		c.metrics.QueryRetries.Inc()
		c.logger.Warn("usgs query failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"url", u,
			"error", err,
		)
		if err := sleepWithContext(ctx, c.clock, wait); err != nil {
			return nil, fmt.Errorf("usgs query: %w", err)
		}
		wait = retry.NextBackoff(wait, c.retry.MaxWait)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, u string) (*domain.Catalog, error) {
	start := c.clock.Now()
	defer func() {
		c.metrics.QueryDuration.Observe(c.clock.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.QueryRequests.WithLabelValues("retryable").Inc()
		return nil, fmt.Errorf("usgs request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		c.metrics.QueryRequests.WithLabelValues("empty").Inc()
		return domain.NewCatalog(domain.StandardHeader), nil
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		c.metrics.QueryRequests.WithLabelValues("retryable").Inc()
		return nil, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, errorBody(resp.Body))
	default:
		c.metrics.QueryRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestRejected, resp.StatusCode, errorBody(resp.Body))
	}

	catalog, err := csvstore.Decode(resp.Body)
	if errors.Is(err, csvstore.ErrEmptyTable) {
		c.metrics.QueryRequests.WithLabelValues("empty").Inc()
		return domain.NewCatalog(domain.StandardHeader), nil
	}
	if err != nil {
		c.metrics.QueryRequests.WithLabelValues("retryable").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.metrics.QueryRequests.WithLabelValues("success").Inc()
	return catalog, nil
}

func errorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(body)
}

// sleepWithContext waits on the injected clock so tests can drive backoff
// with a fake clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
