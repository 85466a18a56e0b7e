package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Status summarizes how much of a plan produced data.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusEmpty    Status = "empty"
	StatusFailed   Status = "failed"
)

// Result is the outcome of one Run.
type Result struct {
	Selection  domain.NormalizedSelection
	Units      []domain.QueryUnit
	Table      *domain.ResultTable
	Failures   []*domain.ExtractionFailure
	EmptyUnits []domain.QueryUnit
	Duplicates int
}

// Status reports failed when every unit failed, partial when some did, empty
// when nothing failed but no rows came back, and complete otherwise.
func (r *Result) Status() Status {
	switch {
	case len(r.Units) > 0 && len(r.Failures) == len(r.Units):
		return StatusFailed
	case len(r.Failures) > 0:
		return StatusPartial
	case r.Table == nil || r.Table.Empty():
		return StatusEmpty
	default:
		return StatusComplete
	}
}

// ProbeResult reports whether the remote collection answers for the first
// unit of a selection.
type ProbeResult struct {
	Unit    domain.QueryUnit `json:"unit"`
	Count   int              `json:"count"`
	Elapsed time.Duration    `json:"elapsed"`
}

// Probe runs a single, unretried request for the first planned unit. It uses
// the extractor's Counter capability when available and otherwise counts the
// extracted observations.
func (p *Pipeline) Probe(ctx context.Context, sel domain.Selection) (*ProbeResult, error) {
	_, units, err := p.plan(sel)
	if err != nil {
		return nil, err
	}
	unit := units[0]
	point := sel.Point

	start := time.Now()
	var n int
	if c, ok := p.extractor.(domain.Counter); ok {
		n, err = c.Count(ctx, point, unit)
	} else {
		var obs []domain.RawObservation
		obs, err = p.extractor.Extract(ctx, point, unit)
		n = len(obs)
	}
	if err != nil {
		p.logger.Warn("probe failed", "model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "error", err)
		return nil, fmt.Errorf("probe %s: %w", unit, err)
	}

	res := &ProbeResult{Unit: unit, Count: n, Elapsed: time.Since(start)}
	p.logger.Info("probe succeeded", "model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "count", n, "elapsed", res.Elapsed)
	return res, nil
}
