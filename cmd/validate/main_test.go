package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

func exported(t *testing.T, layout csvexport.Layout) string {
	t.Helper()
	d := func(day int) domain.Date { return domain.Date{Year: 2031, Month: 1, Day: day} }
	table := &domain.ResultTable{
		Variables:   []domain.VariableID{domain.Tasmax, domain.Pr},
		GeneratedAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		Rows: []domain.NormalizedRow{
			{Date: d(1), Model: "CESM2", Scenario: domain.SSP245, Values: map[domain.VariableID]float64{domain.Tasmax: 3.5, domain.Pr: 1.2}},
			{Date: d(1), Model: "MIROC6", Scenario: domain.SSP245, Values: map[domain.VariableID]float64{domain.Tasmax: 2.1}},
			{Date: d(2), Model: "CESM2", Scenario: domain.SSP245, Values: map[domain.VariableID]float64{domain.Tasmax: 4, domain.Pr: 0}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, csvexport.Write(&buf, table, csvexport.Options{
		Layout:    layout,
		Precision: 2,
		Metadata:  &csvexport.Metadata{Collection: "NASA/GDDP-CMIP6"},
	}))
	return buf.String()
}

func TestRun_ExportedFilesPass(t *testing.T) {
	for _, layout := range []csvexport.Layout{csvexport.LayoutWide, csvexport.LayoutLong} {
		t.Run(string(layout), func(t *testing.T) {
			var out bytes.Buffer
			code := run(strings.NewReader(exported(t, layout)), &out)
			assert.Equal(t, 0, code, out.String())
			assert.Contains(t, out.String(), "Layout: "+string(layout))
			assert.Contains(t, out.String(), "NA cells: 1")
		})
	}
}

func TestRun_Failures(t *testing.T) {
	header := "date,model,scenario,tasmax,pr\n"
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"unknown header", "when,what\n2031-01-01,x\n", "neither wide"},
		{"empty cell", header + "2031-01-01,CESM2,ssp245,3.5,\n", "missing values must be NA"},
		{"bad date", header + "01/01/2031,CESM2,ssp245,3.5,NA\n", "not YYYY-MM-DD"},
		{"out of order", header + "2031-01-02,CESM2,ssp245,1,1\n2031-01-01,CESM2,ssp245,1,1\n", "sorts before"},
		{"duplicate key", header + "2031-01-01,CESM2,ssp245,1,1\n2031-01-01,CESM2,ssp245,2,2\n", "duplicate of row 2"},
		{"bad scenario", header + "2031-01-01,CESM2,rcp85,1,1\n", "unknown scenario"},
		{"text value", header + "2031-01-01,CESM2,ssp245,warm,1\n", "neither numeric nor NA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, 1, run(strings.NewReader(tt.csv), &out))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
