package earthengine

import (
	"fmt"
	"time"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// parseRegion converts a getRegion table into raw observations. The first
// row is the header: id, longitude, latitude, time (epoch milliseconds),
// then one column per band. Null cells are omitted from Values, and bands
// the unit did not ask for are ignored.
func parseRegion(table [][]any, unit domain.QueryUnit) ([]domain.RawObservation, error) {
	if len(table) == 0 {
		return []domain.RawObservation{}, nil
	}

	header := table[0]
	timeCol := -1
	bandCols := make(map[int]domain.VariableID)
	wanted := make(map[domain.VariableID]bool, len(unit.Variables))
	for _, v := range unit.Variables {
		wanted[v] = true
	}
	for i, h := range header {
		name, ok := h.(string)
		if !ok {
			return nil, fmt.Errorf("region header column %d is %T, want string", i, h)
		}
		if name == "time" {
			timeCol = i
			continue
		}
		if v := domain.VariableID(name); wanted[v] {
			bandCols[i] = v
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("region header has no time column: %v", header)
	}

	out := make([]domain.RawObservation, 0, len(table)-1)
	for r, row := range table[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("region row %d has %d cells, header has %d", r+1, len(row), len(header))
		}
		ms, ok := row[timeCol].(float64)
		if !ok {
			return nil, fmt.Errorf("region row %d time is %T, want number", r+1, row[timeCol])
		}
		day := domain.DateOf(time.UnixMilli(int64(ms)))

		values := make(map[domain.VariableID]float64, len(bandCols))
		for col, v := range bandCols {
			if f, ok := row[col].(float64); ok {
				values[v] = f
			}
		}
		out = append(out, domain.RawObservation{
			Model:    unit.Model,
			Scenario: unit.Scenario,
			Year:     day.Year,
			Month:    day.Month,
			Day:      day.Day,
			Values:   values,
		})
	}
	return out, nil
}
