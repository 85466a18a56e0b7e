package nominatim

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.Place]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, domain.Place](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (domain.Place, error) {
	return c.lookup("forward", "fwd:"+query, func() (domain.Place, error) {
		return c.inner.Search(ctx, query)
	})
}

func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (domain.Place, error) {
	return c.lookup("reverse", fmt.Sprintf("rev:%.4f,%.4f", lat, lon), func() (domain.Place, error) {
		return c.inner.Reverse(ctx, lat, lon)
	})
}

func (c *CachedGeocoder) lookup(method, key string, fetch func() (domain.Place, error)) (domain.Place, error) {
	if place, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	place, err := fetch()
	if err != nil {
		return place, err
	}
	// Only cache matches so "not found" answers can be retried.
	if place.Found() {
		c.cache.Add(key, place)
	}
	return place, nil
}

// Len returns the number of cached places.
func (c *CachedGeocoder) Len() int { return c.cache.Len() }
