package source

import (
	"context"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
)

// CachedFetcher wraps a Fetcher with an in-memory LRU cache of GET responses.
// Other methods, such as simulation POSTs, always reach the inner fetcher.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lru.Cache[string, []byte]
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator holding up to maxEntries responses.
func NewCachedFetcher(inner Fetcher, maxEntries int, metrics *observability.Metrics) (*CachedFetcher, error) {
	cache, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &CachedFetcher{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if req.method() != http.MethodGet {
		return c.inner.Fetch(ctx, req)
	}

	key := req.Key()
	if data, ok := c.cache.Get(key); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	data, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	// Empty bodies are not cached so a source that is still filling can be retried.
	if len(data) > 0 {
		c.cache.Add(key, data)
	}
	return data, nil
}

// Len reports the number of cached responses.
func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}

// Purge drops every cached response.
func (c *CachedFetcher) Purge() {
	c.cache.Purge()
}
