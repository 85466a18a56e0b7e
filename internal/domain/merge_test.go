package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(y, m, d int, model ModelID, scenario ScenarioID, tas float64) NormalizedRow {
	return NormalizedRow{
		Date:     Date{Year: y, Month: m, Day: d},
		Model:    model,
		Scenario: scenario,
		Values:   map[VariableID]float64{Tas: tas},
	}
}

func sampleRows() []NormalizedRow {
	return []NormalizedRow{
		row(2021, 1, 2, "MRI-ESM2-0", SSP245, 4.1),
		row(2021, 1, 1, "MRI-ESM2-0", SSP245, 3.9),
		row(2021, 1, 1, "ACCESS-CM2", SSP585, 5.0),
		row(2021, 1, 1, "ACCESS-CM2", SSP245, 4.5),
		row(2030, 6, 15, "ACCESS-CM2", SSP245, 21.0),
		row(2021, 1, 2, "ACCESS-CM2", SSP245, 4.7),
	}
}

func TestMerger_FirstSeenWins(t *testing.T) {
	m := NewMerger()
	first := row(2021, 3, 4, "ACCESS-CM2", SSP245, 26.85)
	retry := row(2021, 3, 4, "ACCESS-CM2", SSP245, 99.0)

	assert.Equal(t, 1, m.Add(first))
	assert.Equal(t, 0, m.Add(retry))

	require.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Duplicates())
	assert.InDelta(t, 26.85, m.Rows()[0].Values[Tas], 1e-9)
}

func TestMerger_DistinctKeysKept(t *testing.T) {
	m := NewMerger()
	m.Add(
		row(2021, 3, 4, "ACCESS-CM2", SSP245, 1),
		row(2021, 3, 4, "ACCESS-CM2", SSP585, 2),
		row(2021, 3, 4, "CanESM5", SSP245, 3),
		row(2021, 3, 5, "ACCESS-CM2", SSP245, 4),
	)
	assert.Equal(t, 4, m.Len())
	assert.Zero(t, m.Duplicates())
}

func TestMerge_Idempotent(t *testing.T) {
	rows := sampleRows()

	once := Merge(rows)
	twice := Merge(rows, rows)

	assert.Len(t, twice, len(once))
	assert.Equal(t, once, twice)
}

func TestMergeAndAssemble_OrderIndependent(t *testing.T) {
	rows := sampleRows()
	want := Assemble(Merge(rows), []VariableID{Tas}, AssembleOptions{})

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]NormalizedRow(nil), rows...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		// Duplicate delivery of a prefix simulates a retried unit.
		shuffled = append(shuffled, shuffled[:i%len(shuffled)]...)

		got := Assemble(Merge(shuffled), []VariableID{Tas}, AssembleOptions{})
		require.Equal(t, want.Len(), got.Len())

		for j := range got.Rows {
			assert.Equal(t, want.Rows[j].Key(), got.Rows[j].Key())
			if j > 0 {
				assert.LessOrEqual(t, got.Rows[j-1].Date.Compare(got.Rows[j].Date), 0)
				assert.NotEqual(t, got.Rows[j-1].Key(), got.Rows[j].Key())
			}
		}
	}
}
