package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "catalog",
		Short:         "List the known variables, scenarios, decades and models",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderCatalog(cmd.OutOrStdout())
			return nil
		},
	}
}

func renderCatalog(w io.Writer) {
	section(w, "Variables", table.Row{"ID", "Name", "Source unit", "Output unit", "Default"}, func(t table.Writer) {
		for _, v := range domain.Variables {
			t.AppendRow(table.Row{v.ID, v.Name, v.SourceUnit, v.DisplayUnit, mark(slices.Contains(domain.DefaultVariables, v.ID))})
		}
	})

	section(w, "Scenarios", table.Row{"ID", "Family", "Description"}, func(t table.Writer) {
		for _, s := range domain.Scenarios {
			t.AppendRow(table.Row{s.ID, s.Family, s.Description})
		}
	})

	section(w, "Decades", table.Row{"Label", "Family", "Years"}, func(t table.Writer) {
		for _, label := range domain.AllDecades() {
			d, _ := domain.ResolveDecade(label)
			t.AppendRow(table.Row{d.Label, d.Family, d.Range})
		}
	})

	section(w, "Models", table.Row{"ID", "Origin", "Default"}, func(t table.Writer) {
		for _, m := range domain.Models {
			t.AppendRow(table.Row{m.ID, m.Origin, mark(slices.Contains(domain.DefaultModels, m.ID))})
		}
	})
}

func section(w io.Writer, title string, header table.Row, fill func(table.Writer)) {
	_, _ = fmt.Fprintf(w, "%s\n", title)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	fill(t)
	t.Render()
	_, _ = fmt.Fprintln(w)
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return ""
}
