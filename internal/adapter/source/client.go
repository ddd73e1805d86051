package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 32 << 20

// Request describes one call to the footprint data API.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Key identifies the request for caching and supersession.
func (r Request) Key() string {
	key := r.method() + " " + r.Path
	if len(r.Query) > 0 {
		key += "?" + r.Query.Encode()
	}
	return key
}

// Fetcher retrieves raw dataset bytes.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Client implements Fetcher over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a data API client. An empty apiKey sends no credentials.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch performs the request and returns the response body. Transport
// failures and non-2xx statuses wrap domain.ErrSourceUnavailable. A cancelled
// context returns the context's error unwrapped.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	method := req.method()
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json, text/csv, */*")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.SourceAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.metrics.SourceRequests.WithLabelValues(method, "cancelled").Inc()
			return nil, ctxErr
		}
		c.metrics.SourceRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrSourceUnavailable, method, req.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		c.metrics.SourceRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("data source returned error status", "method", method, "path", req.Path, "status", resp.StatusCode)
		return nil, &domain.SourceError{Status: resp.StatusCode, URL: req.Path}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.metrics.SourceRequests.WithLabelValues(method, "cancelled").Inc()
			return nil, err
		}
		c.metrics.SourceRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrSourceUnavailable, err)
	}

	c.metrics.SourceRequests.WithLabelValues(method, "success").Inc()
	return data, nil
}
