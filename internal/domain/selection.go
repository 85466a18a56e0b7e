package domain

import (
	"math"
	"slices"
	"strings"
)

// Point is a WGS-84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Selection is the raw user choice handed to the pipeline.
type Selection struct {
	Point     Point        `json:"point"`
	Decades   []Decade     `json:"decades"`
	Variables []VariableID `json:"variables"`
	Models    []ModelID    `json:"models"`
	Scenarios []ScenarioID `json:"scenarios"`
}

// NormalizedSelection is a validated Selection with decades resolved.
// Every decade is compatible with every scenario.
type NormalizedSelection struct {
	Point     Point
	Decades   []ResolvedDecade
	Variables []VariableID
	Models    []ModelID
	Scenarios []ScenarioID
}

// NormalizeSelection validates sel and returns its canonical form. Decades
// are sorted ascending; variables, models and scenarios keep their selection
// order with duplicates removed. All problems are reported together in a
// *SelectionError.
func NormalizeSelection(sel Selection) (NormalizedSelection, error) {
	verr := &SelectionError{}
	out := NormalizedSelection{Point: sel.Point}

	if !sel.Point.Valid() {
		verr.add("point (%g, %g) outside latitude [-90, 90] / longitude [-180, 180]", sel.Point.Lat, sel.Point.Lon)
	}

	labels := dedupe(trimAll(sel.Decades))
	variables := dedupe(trimAll(sel.Variables))
	scenarios := dedupe(trimAll(sel.Scenarios))
	out.Models = dedupe(trimAll(sel.Models))

	if len(labels) == 0 {
		verr.add("no decades selected")
	}
	if len(variables) == 0 {
		verr.add("no variables selected")
	}
	if len(out.Models) == 0 {
		verr.add("no models selected")
	}
	if len(scenarios) == 0 {
		verr.add("no scenarios selected")
	}

	for _, m := range out.Models {
		if strings.EqualFold(string(m), string(EnsembleModel)) {
			verr.add("model %q is reserved for ensemble rows", m)
		}
	}

	for _, label := range labels {
		d, ok := ResolveDecade(label)
		if !ok {
			verr.add("unknown decade %q", label)
			continue
		}
		out.Decades = append(out.Decades, d)
	}
	slices.SortFunc(out.Decades, func(a, b ResolvedDecade) int { return a.Range.Start - b.Range.Start })

	for _, v := range variables {
		if _, ok := LookupVariable(v); !ok {
			verr.add("unknown variable %q", v)
			continue
		}
		out.Variables = append(out.Variables, v)
	}

	for _, s := range scenarios {
		if _, ok := LookupScenario(s); !ok {
			verr.add("unknown scenario %q", s)
			continue
		}
		out.Scenarios = append(out.Scenarios, s)
	}

	for _, d := range out.Decades {
		for _, s := range out.Scenarios {
			if !Compatible(d, s) {
				verr.add("decade %s (%s, %s) cannot be paired with scenario %s", d.Label, d.Range, d.Family, s)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return NormalizedSelection{}, verr
	}
	return out, nil
}

func trimAll[T ~string](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if t := strings.TrimSpace(string(v)); t != "" {
			out = append(out, T(t))
		}
	}
	return out
}

func dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
