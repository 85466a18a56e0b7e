package nominatim

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	searchCalls  int
	reverseCalls int
	result       domain.Place
	err          error
}

func (m *countingGeocoder) Search(_ context.Context, _ string) (domain.Place, error) {
	m.searchCalls++
	return m.result, m.err
}

func (m *countingGeocoder) Reverse(_ context.Context, _, _ float64) (domain.Place, error) {
	m.reverseCalls++
	return m.result, m.err
}

func newCached(t *testing.T, inner domain.Geocoder, size int) *CachedGeocoder {
	t.Helper()
	c, err := NewCachedGeocoder(inner, size, observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_SearchCacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{Lat: 30, Lon: -97, DisplayName: "Austin, TX"}}
	cached := newCached(t, inner, 10)

	r1, err := cached.Search(context.Background(), "Austin")
	require.NoError(t, err)
	r2, err := cached.Search(context.Background(), "Austin")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.searchCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("forward", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("forward", "miss")), 0)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{DisplayName: "Austin, TX"}}
	cached := newCached(t, inner, 10)

	_, err := cached.Reverse(context.Background(), 30.2672, -97.7431)
	require.NoError(t, err)
	_, err = cached.Reverse(context.Background(), 30.26721, -97.74309)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls, "nearby points share an entry")
}

func TestCachedGeocoder_ForwardAndReverseKeysDistinct(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{DisplayName: "Somewhere"}}
	cached := newCached(t, inner, 10)

	_, _ = cached.Search(context.Background(), "rev:1.0000,2.0000")
	_, _ = cached.Reverse(context.Background(), 1, 2)

	assert.Equal(t, 1, inner.searchCalls)
	assert.Equal(t, 1, inner.reverseCalls)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := newCached(t, inner, 10)

	_, _ = cached.Search(context.Background(), "nowhere")
	_, _ = cached.Search(context.Background(), "nowhere")

	assert.Equal(t, 2, inner.searchCalls)
	assert.Zero(t, cached.Len())
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	cached := newCached(t, inner, 10)

	_, err := cached.Search(context.Background(), "Austin")
	require.Error(t, err)
	_, err = cached.Search(context.Background(), "Austin")
	require.Error(t, err)

	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{result: domain.Place{DisplayName: "X"}}
	cached := newCached(t, inner, 2)

	for _, q := range []string{"a", "b", "c"} {
		_, err := cached.Search(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())

	// "a" was least recently used and should have been evicted.
	_, _ = cached.Search(context.Background(), "a")
	assert.Equal(t, 4, inner.searchCalls)
}

func TestNewCachedGeocoder_InvalidSize(t *testing.T) {
	_, err := NewCachedGeocoder(&countingGeocoder{}, 0, observability.NewMetricsForTesting())
	require.Error(t, err)
}
