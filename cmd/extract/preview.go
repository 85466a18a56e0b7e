package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

func renderPreview(w io.Writer, t *domain.ResultTable, limit, precision int) {
	if t.Empty() {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(toRow(t.Header()))

	records := t.Records(precision)
	for _, rec := range records[:min(limit, len(records))] {
		tw.AppendRow(toRow(rec))
	}
	if len(records) > limit {
		tw.AppendFooter(table.Row{fmt.Sprintf("... %d more rows", len(records)-limit)})
	}
	tw.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
