package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// TableLoader writes an assembled table to a destination.
type TableLoader interface {
	LoadTable(ctx context.Context, sel domain.NormalizedSelection, table *domain.ResultTable) error
}

// readinessChecker is implemented by extractors that can report whether the
// remote service is currently usable.
type readinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Options tunes planning, concurrency and retry behaviour.
type Options struct {
	MaxUnits             int
	MaxConcurrency       int
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// RequireAll fails the whole run when any unit fails.
	RequireAll bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxUnits:             200,
		MaxConcurrency:       4,
		RetryMaxAttempts:     3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     30 * time.Second,
	}
}

// Pipeline orchestrates normalize, plan, extract, map, merge and assemble.
type Pipeline struct {
	extractor domain.Extractor
	loader    TableLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
}

// New creates a Pipeline. loader may be nil when results are only returned.
func New(e domain.Extractor, l TableLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.RetryMaxAttempts < 1 {
		opts.RetryMaxAttempts = 1
	}
	return &Pipeline{
		extractor: e,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness delegates to the extractor when it can report its own health.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if rc, ok := p.extractor.(readinessChecker); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// unitOutcome is what one query unit produced. Exactly one of rows or
// failure is meaningful.
type unitOutcome struct {
	rows    []domain.NormalizedRow
	failure *domain.ExtractionFailure
}

// Run executes one extraction for sel. Invalid selections and oversized
// plans fail before any remote call. Unit failures are collected in the
// result unless RequireAll is set, in which case Run returns
// ErrIncompleteResult joined with every failure.
//
// When a loader is configured and publishing fails, Run returns the result
// together with the publish error.
func (p *Pipeline) Run(ctx context.Context, sel domain.Selection, assemble domain.AssembleOptions) (*Result, error) {
	start := time.Now()
	p.metrics.RunsInFlight.Inc()
	defer p.metrics.RunsInFlight.Dec()

	norm, units, err := p.plan(sel)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	p.metrics.PlannedUnits.Observe(float64(len(units)))
	p.logger.Info("extraction planned",
		"units", len(units),
		"decades", len(norm.Decades),
		"models", len(norm.Models),
		"scenarios", len(norm.Scenarios),
		"variables", len(norm.Variables),
	)

	outcomes := p.extractAll(ctx, norm.Point, units)
	if err := ctx.Err(); err != nil {
		p.metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, fmt.Errorf("extraction interrupted: %w", err)
	}

	res := &Result{Selection: norm, Units: units}
	merger := domain.NewMerger()
	for i, o := range outcomes {
		switch {
		case o.failure != nil:
			res.Failures = append(res.Failures, o.failure)
		case len(o.rows) == 0:
			res.EmptyUnits = append(res.EmptyUnits, units[i])
		default:
			merger.Add(o.rows...)
		}
	}
	res.Duplicates = merger.Duplicates()

	if p.opts.RequireAll && len(res.Failures) > 0 {
		p.metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
		errs := make([]error, 0, len(res.Failures)+1)
		errs = append(errs, fmt.Errorf("%w: %d of %d units failed", domain.ErrIncompleteResult, len(res.Failures), len(units)))
		for _, f := range res.Failures {
			errs = append(errs, f)
		}
		return nil, errors.Join(errs...)
	}

	res.Table = domain.Assemble(merger.Rows(), norm.Variables, assemble)

	status := res.Status()
	p.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	p.metrics.RowsAssembled.Add(float64(res.Table.Len()))
	p.metrics.Duplicates.Add(float64(res.Duplicates))
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("extraction finished",
		"status", status,
		"rows", res.Table.Len(),
		"failed_units", len(res.Failures),
		"empty_units", len(res.EmptyUnits),
		"duplicates", res.Duplicates,
		"duration", time.Since(start),
	)

	if p.loader != nil && !res.Table.Empty() {
		if err := p.loader.LoadTable(ctx, norm, res.Table); err != nil {
			p.logger.Error("load table failed", "error", err, "rows", res.Table.Len())
			return res, fmt.Errorf("load table: %w", err)
		}
	}
	return res, nil
}

func (p *Pipeline) plan(sel domain.Selection) (domain.NormalizedSelection, []domain.QueryUnit, error) {
	norm, err := domain.NormalizeSelection(sel)
	if err != nil {
		return domain.NormalizedSelection{}, nil, err
	}
	units, err := domain.Plan(norm, p.opts.MaxUnits)
	if err != nil {
		return domain.NormalizedSelection{}, nil, err
	}
	return norm, units, nil
}

// extractAll runs every unit with bounded parallelism. Each task records its
// outcome at the unit's plan index and never fails the group, so one unit's
// error does not cancel its siblings.
func (p *Pipeline) extractAll(ctx context.Context, point domain.Point, units []domain.QueryUnit) []unitOutcome {
	outcomes := make([]unitOutcome, len(units))

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrency)
	for i, u := range units {
		g.Go(func() error {
			outcomes[i] = p.runUnit(ctx, point, u)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Pipeline) runUnit(ctx context.Context, point domain.Point, unit domain.QueryUnit) unitOutcome {
	start := time.Now()
	defer func() { p.metrics.UnitDuration.Observe(time.Since(start).Seconds()) }()

	attempts := 0
	var raw []domain.RawObservation
	op := func() error {
		attempts++
		obs, err := p.extractor.Extract(ctx, point, unit)
		if err != nil {
			if !domain.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		raw = obs
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.metrics.UnitRetries.Inc()
		p.logger.Warn("unit attempt failed, retrying",
			"model", unit.Model,
			"scenario", unit.Scenario,
			"decade", unit.Decade,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, p.retryPolicy(ctx), notify); err != nil {
		p.metrics.UnitsTotal.WithLabelValues("failed").Inc()
		failure := &domain.ExtractionFailure{
			Unit:      unit,
			Attempts:  attempts,
			Transient: domain.IsTransient(err),
			Err:       err,
		}
		p.logger.Error("unit failed",
			"model", unit.Model,
			"scenario", unit.Scenario,
			"decade", unit.Decade,
			"attempt", attempts,
			"error", err,
		)
		return unitOutcome{failure: failure}
	}

	rows := normalizeUnit(unit, raw)
	if dropped := len(raw) - len(rows); dropped > 0 {
		p.logger.Debug("dropped observations outside unit years",
			"model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "dropped", dropped)
	}
	if len(rows) == 0 {
		p.metrics.UnitsTotal.WithLabelValues("empty").Inc()
	} else {
		p.metrics.UnitsTotal.WithLabelValues("success").Inc()
	}
	return unitOutcome{rows: rows}
}

// retryPolicy bounds a unit to RetryMaxAttempts calls with exponential waits.
func (p *Pipeline) retryPolicy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.opts.RetryInitialInterval
	eb.MaxInterval = p.opts.RetryMaxInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.opts.RetryMaxAttempts-1)), ctx)
}

// normalizeUnit converts a unit's raw observations to display units. The
// unit's identity fills in a missing model or scenario, and days outside the
// unit's years are discarded.
func normalizeUnit(unit domain.QueryUnit, raw []domain.RawObservation) []domain.NormalizedRow {
	rows := make([]domain.NormalizedRow, 0, len(raw))
	for _, obs := range raw {
		if !unit.Years.Contains(obs.Year) {
			continue
		}
		if obs.Model == "" {
			obs.Model = unit.Model
		}
		if obs.Scenario == "" {
			obs.Scenario = unit.Scenario
		}
		rows = append(rows, domain.NormalizeObservation(obs, unit.Variables))
	}
	return rows
}
