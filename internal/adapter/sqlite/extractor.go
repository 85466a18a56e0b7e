package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// CachedExtractor serves unit extractions from the store and falls through
// to the wrapped extractor on a miss. Errors are never cached; empty results
// are, since they mean the dataset has no matching days.
type CachedExtractor struct {
	inner      domain.Extractor
	store      *Store
	collection string
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewCachedExtractor wraps inner with the store. collection is part of every
// key so switching datasets never serves stale rows.
func NewCachedExtractor(inner domain.Extractor, store *Store, collection string, metrics *observability.Metrics, logger *slog.Logger) *CachedExtractor {
	return &CachedExtractor{
		inner:      inner,
		store:      store,
		collection: collection,
		metrics:    metrics,
		logger:     logger,
		clock:      clockwork.NewRealClock(),
	}
}

// Extract implements domain.Extractor.
func (c *CachedExtractor) Extract(ctx context.Context, point domain.Point, unit domain.QueryUnit) ([]domain.RawObservation, error) {
	key := KeyFor(c.collection, point, unit)

	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken cache must not fail the run.
		c.logger.Warn("observation cache read failed", "model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "error", err)
	}
	if ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Observations, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	obs, err := c.inner.Extract(ctx, point, unit)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, key, obs, c.clock.Now()); err != nil {
		c.logger.Warn("observation cache write failed", "model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "error", err)
	}
	return obs, nil
}

// Count implements domain.Counter. Cached units are counted locally; others
// go to the wrapped extractor's Counter when it has one.
func (c *CachedExtractor) Count(ctx context.Context, point domain.Point, unit domain.QueryUnit) (int, error) {
	if entry, ok, err := c.store.Get(ctx, KeyFor(c.collection, point, unit)); err == nil && ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return len(entry.Observations), nil
	}
	if counter, ok := c.inner.(domain.Counter); ok {
		return counter.Count(ctx, point, unit)
	}
	obs, err := c.Extract(ctx, point, unit)
	if err != nil {
		return 0, err
	}
	return len(obs), nil
}

// CheckReadiness requires both the store and, when it reports readiness, the
// wrapped extractor to be ready.
func (c *CachedExtractor) CheckReadiness(ctx context.Context) error {
	if err := c.store.CheckReadiness(ctx); err != nil {
		return err
	}
	if rc, ok := c.inner.(interface{ CheckReadiness(context.Context) error }); ok {
		if err := rc.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("extractor: %w", err)
		}
	}
	return nil
}
