// Package csvexport renders result tables as delimited text, optionally
// preceded by a "#" comment block describing the extraction.
package csvexport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Layout selects the column arrangement.
type Layout string

const (
	// LayoutWide writes one row per (date, model, scenario) with one column
	// per variable.
	LayoutWide Layout = "wide"
	// LayoutLong writes one row per (date, variable, model, scenario).
	LayoutLong Layout = "long"
)

// ParseLayout accepts "wide", "long" or "" (wide).
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutWide:
		return LayoutWide, nil
	case LayoutLong:
		return LayoutLong, nil
	default:
		return "", fmt.Errorf("unknown layout %q (want wide or long)", s)
	}
}

// DefaultPrecision is the number of decimals written per value.
const DefaultPrecision = 4

// Options controls one export.
type Options struct {
	Layout Layout
	// Precision is the decimals kept per value; negative keeps all.
	Precision int
	// Metadata, when non-nil, is written as a comment header.
	Metadata *Metadata
}

// LongHeader is the column order of the long layout.
var LongHeader = []string{"date", "variable", "model", "scenario", "value"}

// Write renders table to w.
func Write(w io.Writer, table *domain.ResultTable, opts Options) error {
	bw := bufio.NewWriter(w)
	if opts.Metadata != nil {
		if err := writeMetadata(bw, table, *opts.Metadata, opts.Layout); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(bw)
	var err error
	switch opts.Layout {
	case LayoutLong:
		err = writeLong(cw, table, opts.Precision)
	default:
		err = writeWide(cw, table, opts.Precision)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return bw.Flush()
}

func writeWide(cw *csv.Writer, table *domain.ResultTable, precision int) error {
	if err := cw.Write(table.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(table.Records(precision)); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func writeLong(cw *csv.Writer, table *domain.ResultTable, precision int) error {
	if err := cw.Write(LongHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range table.Rows {
		for _, v := range table.Variables {
			value := domain.NoData
			if val, ok := r.Values[v]; ok {
				value = domain.FormatValue(val, precision)
			}
			rec := []string{r.Date.String(), string(v), string(r.Model), string(r.Scenario), value}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write row %s: %w", r.Date, err)
			}
		}
	}
	return nil
}

// ModelFile is one table of a per-model split.
type ModelFile struct {
	Model    domain.ModelID
	FileName string
	Table    *domain.ResultTable
}

// SplitByModel returns one file per model in the table, ordered by model.
// prefix is the file name stem, typically the place or coordinates.
func SplitByModel(table *domain.ResultTable, prefix string) []ModelFile {
	models := table.Models()
	out := make([]ModelFile, 0, len(models))
	for _, m := range models {
		out = append(out, ModelFile{
			Model:    m,
			FileName: FileName(prefix, m),
			Table:    table.ForModel(m),
		})
	}
	return out
}

// FileName builds a filesystem-safe export name such as
// "Oslo_Norway_MIROC6.csv". An empty model yields "<prefix>.csv".
func FileName(prefix string, model domain.ModelID) string {
	parts := slices.DeleteFunc([]string{sanitize(prefix), sanitize(string(model))}, func(s string) bool { return s == "" })
	if len(parts) == 0 {
		parts = []string{"climate"}
	}
	return strings.Join(parts, "_") + ".csv"
}

// Prefix is the file name stem for a location: the leading part of its
// place name, or its coordinates when unnamed.
func Prefix(loc domain.Location) string {
	if loc.Name != "" {
		name, _, _ := strings.Cut(loc.Name, ",")
		return name
	}
	return fmt.Sprintf("%.4f_%.4f", loc.Point.Lat, loc.Point.Lon)
}

func sanitize(s string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('_')
			lastSep = true
		}
	}
	return strings.Trim(b.String(), "_.")
}
