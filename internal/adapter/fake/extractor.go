// Package fake provides a deterministic in-memory domain.Extractor for tests,
// local development and offline runs against a JSON fixture.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Response is one scripted answer for a unit. Err takes precedence.
type Response struct {
	Observations []domain.RawObservation
	Err          error
}

type unitKey struct {
	model    domain.ModelID
	scenario domain.ScenarioID
	decade   domain.Decade
}

func keyOf(u domain.QueryUnit) unitKey {
	return unitKey{model: u.Model, scenario: u.Scenario, decade: u.Decade}
}

// Extractor answers Extract from scripts, a fixture, or synthetic data.
//
// Scripted units consume their responses in order and repeat the last one.
// Unscripted units are served from the fixture observations when any were
// loaded, then from the synthetic generator when enabled, and otherwise
// return no data.
type Extractor struct {
	mu        sync.Mutex
	scripts   map[unitKey][]Response
	fixture   []domain.RawObservation
	synthetic bool
	calls     map[unitKey]int
	total     int
}

// New returns an Extractor that yields no data for unscripted units.
func New() *Extractor {
	return &Extractor{
		scripts: make(map[unitKey][]Response),
		calls:   make(map[unitKey]int),
	}
}

// NewSynthetic returns an Extractor that fabricates daily observations for
// every unscripted unit.
func NewSynthetic() *Extractor {
	e := New()
	e.synthetic = true
	return e
}

// LoadFixture reads a JSON array of raw observations.
func LoadFixture(r io.Reader) (*Extractor, error) {
	var obs []domain.RawObservation
	if err := json.NewDecoder(r).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	e := New()
	e.fixture = obs
	return e, nil
}

// LoadFixtureFile opens path and reads it with LoadFixture.
func LoadFixtureFile(path string) (*Extractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadFixture(f)
}

// Script queues responses for the unit identified by model, scenario and decade.
func (e *Extractor) Script(model domain.ModelID, scenario domain.ScenarioID, decade domain.Decade, responses ...Response) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := unitKey{model: model, scenario: scenario, decade: decade}
	e.scripts[k] = append(e.scripts[k], responses...)
}

// Extract implements domain.Extractor.
func (e *Extractor) Extract(ctx context.Context, _ domain.Point, unit domain.QueryUnit) ([]domain.RawObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	k := keyOf(unit)
	n := e.calls[k]
	e.calls[k] = n + 1
	e.total++
	script, scripted := e.scripts[k]
	e.mu.Unlock()

	if scripted && len(script) > 0 {
		r := script[min(n, len(script)-1)]
		if r.Err != nil {
			return nil, r.Err
		}
		return filter(r.Observations, unit), nil
	}
	if len(e.fixture) > 0 {
		return filter(e.fixture, unit), nil
	}
	if e.synthetic {
		return Synthesize(unit.Model, unit.Scenario, unit.Years, unit.Variables), nil
	}
	return []domain.RawObservation{}, nil
}

// Count implements domain.Counter.
func (e *Extractor) Count(ctx context.Context, point domain.Point, unit domain.QueryUnit) (int, error) {
	obs, err := e.Extract(ctx, point, unit)
	if err != nil {
		return 0, err
	}
	return len(obs), nil
}

// Calls returns how many times Extract was invoked for the unit.
func (e *Extractor) Calls(unit domain.QueryUnit) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[keyOf(unit)]
}

// TotalCalls returns the number of Extract invocations across all units.
func (e *Extractor) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// filter keeps observations that match the unit's model, scenario and years,
// restricted to the unit's variables. Observations without a model or
// scenario are taken to belong to the unit.
func filter(in []domain.RawObservation, unit domain.QueryUnit) []domain.RawObservation {
	out := make([]domain.RawObservation, 0, len(in))
	for _, o := range in {
		if o.Model != "" && o.Model != unit.Model {
			continue
		}
		if o.Scenario != "" && o.Scenario != unit.Scenario {
			continue
		}
		if !unit.Years.Contains(o.Year) {
			continue
		}
		values := make(map[domain.VariableID]float64, len(unit.Variables))
		for _, v := range unit.Variables {
			if val, ok := o.Values[v]; ok {
				values[v] = val
			}
		}
		o.Model, o.Scenario, o.Values = unit.Model, unit.Scenario, values
		out = append(out, o)
	}
	return out
}
