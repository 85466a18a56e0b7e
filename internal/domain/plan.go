package domain

import (
	"fmt"
	"slices"
)

// QueryUnit is one bounded remote extraction: a single model, scenario and
// decade with every requested variable. Index is the unit's position in the
// plan and fixes the order in which outcomes are merged.
type QueryUnit struct {
	Index     int          `json:"index"`
	Model     ModelID      `json:"model"`
	Scenario  ScenarioID   `json:"scenario"`
	Decade    Decade       `json:"decade"`
	Years     YearRange    `json:"years"`
	Variables []VariableID `json:"variables"`
}

func (u QueryUnit) String() string {
	return fmt.Sprintf("%s/%s/%s", u.Model, u.Scenario, u.Years)
}

// Plan expands a normalized selection into query units ordered by decade,
// then model, then scenario. A positive maxUnits caps the plan size; larger
// selections fail with ErrPlanTooLarge before any remote work.
func Plan(sel NormalizedSelection, maxUnits int) ([]QueryUnit, error) {
	n := len(sel.Decades) * len(sel.Models) * len(sel.Scenarios)
	if maxUnits > 0 && n > maxUnits {
		return nil, fmt.Errorf("%w: %d decades x %d models x %d scenarios = %d units, limit %d",
			ErrPlanTooLarge, len(sel.Decades), len(sel.Models), len(sel.Scenarios), n, maxUnits)
	}

	units := make([]QueryUnit, 0, n)
	for _, d := range sel.Decades {
		for _, m := range sel.Models {
			for _, s := range sel.Scenarios {
				units = append(units, QueryUnit{
					Index:     len(units),
					Model:     m,
					Scenario:  s,
					Decade:    d.Label,
					Years:     d.Range,
					Variables: slices.Clone(sel.Variables),
				})
			}
		}
	}
	return units, nil
}
