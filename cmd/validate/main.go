// Command validate checks an exported climate CSV: the header matches a
// known layout, rows are well formed and sorted, keys are unique, and
// missing values use the NA marker instead of empty cells.
//
// Usage:
//
//	go run ./cmd/validate -csv exports/Oslo_MIROC6.csv
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	// At most 50 details per phase.
	if len(p.errors) < 50 {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("csv", "", "path to an exported CSV file")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	os.Exit(run(f, os.Stdout))
}

func run(r io.Reader, out io.Writer) int {
	fmt.Fprintln(out, "=== Climate CSV Validation ===")
	fmt.Fprintln(out)

	file, err := load(r)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{validateLayout(file)}
	// Row checks index key columns, so they need a recognized header.
	if phases[0].passed() {
		phases = append(phases, validateRows(file), validateOrdering(file), validateUniqueness(file))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-24s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Layout: %s, rows: %d, comment lines: %d, NA cells: %d\n",
		file.layout, len(file.rows), file.comments, file.missing())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

type csvFile struct {
	header   []string
	rows     [][]string
	layout   csvexport.Layout
	comments int
}

func load(r io.Reader) (*csvFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	file := &csvFile{}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "#") {
			break
		}
		file.comments++
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, errors.New("no header row")
	}
	file.header, file.rows = all[0], all[1:]
	if slices.Equal(file.header, csvexport.LongHeader) {
		file.layout = csvexport.LayoutLong
	} else {
		file.layout = csvexport.LayoutWide
	}
	return file, nil
}

func (f *csvFile) missing() int {
	n := 0
	for _, row := range f.rows {
		for _, cell := range row {
			if cell == domain.NoData {
				n++
			}
		}
	}
	return n
}

// key returns the identifying cells of a row in sort order.
func (f *csvFile) key(row []string) []string {
	if f.layout == csvexport.LayoutLong {
		// Long rows of one day share a key across variables.
		return []string{row[0], row[2], row[3]}
	}
	return row[:3]
}

// ── Phases ──

func validateLayout(f *csvFile) *phase {
	p := &phase{name: "Layout"}
	if f.layout == csvexport.LayoutLong {
		return p
	}
	if len(f.header) < 4 || !slices.Equal(f.header[:3], []string{"date", "model", "scenario"}) {
		p.errorf("header %v is neither wide (date,model,scenario,<variables>) nor long %v", f.header, csvexport.LongHeader)
		return p
	}
	seen := map[string]bool{}
	for _, col := range f.header[3:] {
		if _, ok := domain.LookupVariable(domain.VariableID(col)); !ok {
			p.errorf("unknown variable column %q", col)
		}
		if seen[col] {
			p.errorf("duplicate variable column %q", col)
		}
		seen[col] = true
	}
	return p
}

func validateRows(f *csvFile) *phase {
	p := &phase{name: "Row format"}
	for i, row := range f.rows {
		line := i + 2
		if len(row) != len(f.header) {
			p.errorf("row %d: %d fields, header has %d", line, len(row), len(f.header))
			continue
		}
		if _, err := time.Parse(time.DateOnly, row[0]); err != nil {
			p.errorf("row %d: date %q is not YYYY-MM-DD", line, row[0])
		}

		k := f.key(row)
		if k[1] == "" {
			p.errorf("row %d: empty model", line)
		}
		if _, ok := domain.LookupScenario(domain.ScenarioID(k[2])); !ok {
			p.errorf("row %d: unknown scenario %q", line, k[2])
		}

		values := row[3:]
		if f.layout == csvexport.LayoutLong {
			if _, ok := domain.LookupVariable(domain.VariableID(row[1])); !ok {
				p.errorf("row %d: unknown variable %q", line, row[1])
			}
			values = row[4:]
		}
		for _, v := range values {
			checkValue(p, line, v)
		}
	}
	return p
}

func checkValue(p *phase, line int, v string) {
	switch v {
	case domain.NoData:
	case "":
		p.errorf("row %d: empty cell, missing values must be %s", line, domain.NoData)
	default:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			p.errorf("row %d: value %q is neither numeric nor %s", line, v, domain.NoData)
		}
	}
}

func validateOrdering(f *csvFile) *phase {
	p := &phase{name: "Ordering"}
	for i := 1; i < len(f.rows); i++ {
		prev, cur := f.rows[i-1], f.rows[i]
		if len(prev) != len(f.header) || len(cur) != len(f.header) {
			continue
		}
		if slices.Compare(f.key(prev), f.key(cur)) > 0 {
			p.errorf("row %d: %v sorts before the previous row %v", i+2, f.key(cur), f.key(prev))
		}
	}
	return p
}

func validateUniqueness(f *csvFile) *phase {
	p := &phase{name: "Uniqueness"}
	seen := make(map[string]int, len(f.rows))
	for i, row := range f.rows {
		if len(row) != len(f.header) {
			continue
		}
		parts := f.key(row)
		if f.layout == csvexport.LayoutLong {
			parts = append(slices.Clone(parts), row[1])
		}
		k := strings.Join(parts, "|")
		if first, dup := seen[k]; dup {
			p.errorf("row %d: duplicate of row %d (%s)", i+2, first, k)
			continue
		}
		seen[k] = i + 2
	}
	return p
}
