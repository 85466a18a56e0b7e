package csvexport

import (
	"bufio"
	"fmt"
	"slices"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

const rule = "# ============================================================================"

// Metadata describes where and how a table was extracted.
type Metadata struct {
	Location   domain.Location
	Collection string
}

func writeMetadata(w *bufio.Writer, table *domain.ResultTable, md Metadata, layout Layout) error {
	lines := []string{
		rule,
		"# " + md.Collection + " Climate Data Extraction",
		rule,
		fmt.Sprintf("# Location: %.4f°N, %.4f°E", md.Location.Point.Lat, md.Location.Point.Lon),
	}
	if md.Location.Name != "" {
		lines = append(lines, "# Place: "+md.Location.Name)
	}
	lines = append(lines,
		"# Generated: "+table.GeneratedAt.UTC().Format("2006-01-02 15:04:05")+" UTC",
		"#",
	)
	lines = append(lines, legend(layout)...)
	lines = append(lines, units(table)...)
	lines = append(lines, scenarios(table)...)
	lines = append(lines, models(table)...)
	lines = append(lines,
		"# DATA SOURCE:",
		"#   NASA Earth Exchange Global Daily Downscaled Climate Projections",
		"#   (NEX-GDDP-CMIP6), resolution 0.25° (~25 km)",
		rule,
	)

	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	return nil
}

func legend(layout Layout) []string {
	out := []string{
		"# DATA COLUMNS:",
		"#   date      - Date in YYYY-MM-DD format",
	}
	if layout == LayoutLong {
		out = append(out, "#   variable  - Climate variable (see VARIABLES below)")
	}
	out = append(out,
		"#   model     - Climate model name (or "+string(domain.EnsembleModel)+")",
		"#   scenario  - Emissions scenario",
	)
	if layout == LayoutLong {
		out = append(out, "#   value     - Value in the units listed below")
	} else {
		out = append(out, "#   <variable> - One column per variable in the units listed below")
	}
	out = append(out, "#   "+domain.NoData+"        - No value for that day", "#")
	return out
}

func units(table *domain.ResultTable) []string {
	out := []string{"# VARIABLES & UNITS:"}
	for _, v := range table.Variables {
		info, ok := domain.LookupVariable(v)
		if !ok {
			out = append(out, fmt.Sprintf("#   %-9s - %s", v, v))
			continue
		}
		out = append(out, fmt.Sprintf("#   %-9s - %s (%s)", v, info.Name, info.DisplayUnit))
	}
	return append(out, "#")
}

func scenarios(table *domain.ResultTable) []string {
	var ids []domain.ScenarioID
	for _, r := range table.Rows {
		if !slices.Contains(ids, r.Scenario) {
			ids = append(ids, r.Scenario)
		}
	}
	slices.Sort(ids)

	out := []string{"# SCENARIOS:"}
	for _, id := range ids {
		desc := string(id)
		if info, ok := domain.LookupScenario(id); ok {
			desc = info.Description
		}
		out = append(out, fmt.Sprintf("#   %-10s - %s", id, desc))
	}
	return append(out, "#")
}

func models(table *domain.ResultTable) []string {
	all := table.Models()
	individual := slices.DeleteFunc(slices.Clone(all), func(m domain.ModelID) bool { return m == domain.EnsembleModel })
	hasEnsemble := len(individual) < len(all)

	var out []string
	switch {
	case len(all) == 0:
		return nil
	case hasEnsemble && len(individual) == 0:
		out = []string{"# MODEL:", "#   " + string(domain.EnsembleModel) + " (multi-model average)"}
	case len(all) == 1:
		out = []string{"# MODEL:", "#   " + string(all[0])}
	default:
		out = []string{"# MODELS:", fmt.Sprintf("#   This file includes %d climate models:", len(individual))}
		for _, m := range individual {
			out = append(out, "#     - "+string(m))
		}
		if hasEnsemble {
			out = append(out,
				"#   "+string(domain.EnsembleModel)+" is the arithmetic mean across models",
				"#   for each date, variable and scenario.",
			)
		}
	}
	return append(out, "#")
}
