package domain

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"time"
)

// NoData marks a cell whose variable was not present for that row.
const NoData = "NA"

// Identifying columns that precede the variable columns.
var keyColumns = []string{"date", "model", "scenario"}

// ResultTable is the pipeline's terminal artifact: rows unique by
// (date, model, scenario), sorted by date, then model, then scenario.
type ResultTable struct {
	Variables   []VariableID    `json:"variables"`
	Rows        []NormalizedRow `json:"rows"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// AssembleOptions controls optional derived rows.
type AssembleOptions struct {
	// Ensemble appends ENSEMBLE-MEAN rows averaging the models present for
	// each (date, scenario). The table needs at least two models overall;
	// a group with a single contributor carries that model's values.
	Ensemble bool
	// EnsembleOnly drops per-model rows after computing the ensemble.
	EnsembleOnly bool
}

// Assemble sorts deduplicated rows into the canonical table layout.
func Assemble(rows []NormalizedRow, variables []VariableID, opts AssembleOptions) *ResultTable {
	out := make([]NormalizedRow, 0, len(rows))
	if opts.Ensemble {
		ensemble := ensembleMean(rows, variables)
		if !opts.EnsembleOnly || len(ensemble) == 0 {
			out = append(out, rows...)
		}
		out = append(out, ensemble...)
	} else {
		out = append(out, rows...)
	}

	slices.SortStableFunc(out, compareRows)

	return &ResultTable{
		Variables:   slices.Clone(variables),
		Rows:        out,
		GeneratedAt: clock.Now().UTC(),
	}
}

func compareRows(a, b NormalizedRow) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Model, b.Model); c != 0 {
		return c
	}
	return cmp.Compare(a.Scenario, b.Scenario)
}

// ensembleMean averages each variable across models for every
// (date, scenario). Returns nil when fewer than two models appear in rows.
func ensembleMean(rows []NormalizedRow, variables []VariableID) []NormalizedRow {
	type groupKey struct {
		date     Date
		scenario ScenarioID
	}
	type acc struct {
		sum   map[VariableID]float64
		count map[VariableID]int
	}

	models := make(map[ModelID]struct{})
	groups := make(map[groupKey]*acc)
	var order []groupKey
	for _, r := range rows {
		if r.Model == EnsembleModel {
			continue
		}
		models[r.Model] = struct{}{}
		k := groupKey{date: r.Date, scenario: r.Scenario}
		g, ok := groups[k]
		if !ok {
			g = &acc{sum: make(map[VariableID]float64), count: make(map[VariableID]int)}
			groups[k] = g
			order = append(order, k)
		}
		for _, v := range variables {
			if val, ok := r.Values[v]; ok {
				g.sum[v] += val
				g.count[v]++
			}
		}
	}
	if len(models) < 2 {
		return nil
	}

	out := make([]NormalizedRow, 0, len(order))
	for _, k := range order {
		g := groups[k]
		values := make(map[VariableID]float64, len(g.count))
		for v, n := range g.count {
			values[v] = g.sum[v] / float64(n)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, NormalizedRow{Date: k.date, Model: EnsembleModel, Scenario: k.scenario, Values: values})
	}
	return out
}

// Len returns the number of rows.
func (t *ResultTable) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows. An empty table is a valid
// result, distinct from a failed extraction.
func (t *ResultTable) Empty() bool { return len(t.Rows) == 0 }

// Header returns the column names: date, model, scenario, then one column
// per requested variable in request order.
func (t *ResultTable) Header() []string {
	h := slices.Clone(keyColumns)
	for _, v := range t.Variables {
		h = append(h, string(v))
	}
	return h
}

// Records renders every row as strings matching Header. Values are rounded
// to precision decimal places (negative keeps full precision) and missing
// values become NoData.
func (t *ResultTable) Records(precision int) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make([]string, 0, len(keyColumns)+len(t.Variables))
		rec = append(rec, r.Date.String(), string(r.Model), string(r.Scenario))
		for _, v := range t.Variables {
			val, ok := r.Values[v]
			if !ok {
				rec = append(rec, NoData)
				continue
			}
			rec = append(rec, FormatValue(val, precision))
		}
		out = append(out, rec)
	}
	return out
}

// FormatValue renders a display value with at most precision decimals.
func FormatValue(v float64, precision int) string {
	if precision >= 0 {
		p := math.Pow10(precision)
		v = math.Round(v*p) / p
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Models returns the distinct models in the table, sorted.
func (t *ResultTable) Models() []ModelID {
	seen := make(map[ModelID]struct{})
	var out []ModelID
	for _, r := range t.Rows {
		if _, ok := seen[r.Model]; ok {
			continue
		}
		seen[r.Model] = struct{}{}
		out = append(out, r.Model)
	}
	slices.Sort(out)
	return out
}

// ForModel returns a table holding only the rows of one model.
func (t *ResultTable) ForModel(m ModelID) *ResultTable {
	rows := make([]NormalizedRow, 0)
	for _, r := range t.Rows {
		if r.Model == m {
			rows = append(rows, r)
		}
	}
	return &ResultTable{Variables: slices.Clone(t.Variables), Rows: rows, GeneratedAt: t.GeneratedAt}
}
