package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

type extractOptions struct {
	sel          selectionFlags
	ensemble     bool
	ensembleOnly bool
	layout       string
	precision    int
	noMetadata   bool
	out          string
	split        bool
	preview      int
}

func newExtractCmd(g *globalOptions) *cobra.Command {
	o := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract daily NEX-GDDP-CMIP6 values for one point",
		Long: `Extract plans one query per (model, scenario, decade), fetches each from
Earth Engine, merges the results and writes a single CSV table.

A failed unit does not abort the run: its rows are missing from the table
and the failure is reported on stderr.`,
		Example: `  # Two decades, two scenarios, written next to you
  extract --lat 59.91 --lon 10.75 --decades 2030s,2050s --scenarios ssp245,ssp585

  # Ensemble mean only, long layout, to stdout
  extract --place "Oslo, Norway" --decades 2050s --scenarios ssp585 \
    --ensemble --ensemble-only --layout long --out -

  # One file per model in ./exports
  extract --lat 40.71 --lon -74.01 --decades 1990s --scenarios historical --split --out exports`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, g, o)
		},
	}

	o.sel.register(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&o.ensemble, "ensemble", false, "append ENSEMBLE-MEAN rows averaging all models")
	fs.BoolVar(&o.ensembleOnly, "ensemble-only", false, "keep only the ensemble rows (implies --ensemble)")
	fs.StringVar(&o.layout, "layout", string(csvexport.LayoutWide), "column layout: wide or long")
	fs.IntVar(&o.precision, "precision", csvexport.DefaultPrecision, "decimal places (negative keeps full precision)")
	fs.BoolVar(&o.noMetadata, "no-metadata", false, "omit the # header block")
	fs.StringVarP(&o.out, "out", "o", "", `output file, "-" for stdout, or a directory with --split (default: named after the location)`)
	fs.BoolVar(&o.split, "split", false, "write one file per model")
	fs.IntVar(&o.preview, "preview", 0, "print the first N rows as a table on stderr")
	return cmd
}

func runExtract(cmd *cobra.Command, g *globalOptions, o *extractOptions) error {
	layout, err := csvexport.ParseLayout(o.layout)
	if err != nil {
		return err
	}
	if o.split && o.out == "-" {
		return errors.New("--split writes files; pass a directory with --out")
	}
	req, err := o.sel.locationRequest(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cmd, g, req.Point == nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	loc, err := rt.resolver.Resolve(ctx, req)
	if err != nil {
		return err
	}

	res, err := rt.pipeline.Run(ctx, o.sel.selection(loc.Point), domain.AssembleOptions{
		Ensemble:     o.ensemble || o.ensembleOnly,
		EnsembleOnly: o.ensembleOnly,
	})
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	reportFailures(stderr, res)
	if res.Status() == pipeline.StatusFailed {
		return fmt.Errorf("all %d units failed", len(res.Failures))
	}
	if o.preview > 0 {
		renderPreview(stderr, res.Table, o.preview, o.precision)
	}

	opts := csvexport.Options{Layout: layout, Precision: o.precision}
	if !o.noMetadata {
		opts.Metadata = &csvexport.Metadata{Location: loc, Collection: rt.cfg.EECollection}
	}
	return writeOutput(cmd, o, loc, res.Table, opts)
}

func writeOutput(cmd *cobra.Command, o *extractOptions, loc domain.Location, table *domain.ResultTable, opts csvexport.Options) error {
	prefix := csvexport.Prefix(loc)
	stderr := cmd.ErrOrStderr()

	if o.split {
		dir := o.out
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for _, f := range csvexport.SplitByModel(table, prefix) {
			path := filepath.Join(dir, f.FileName)
			if err := writeFile(path, f.Table, opts); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "wrote %d rows to %s\n", f.Table.Len(), path)
		}
		return nil
	}

	if o.out == "-" {
		return csvexport.Write(cmd.OutOrStdout(), table, opts)
	}
	path := o.out
	if path == "" {
		path = csvexport.FileName(prefix, "")
	}
	if err := writeFile(path, table, opts); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "wrote %d rows to %s\n", table.Len(), path)
	return nil
}

func writeFile(path string, table *domain.ResultTable, opts csvexport.Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return csvexport.Write(f, table, opts)
}

func reportFailures(w io.Writer, res *pipeline.Result) {
	for _, f := range res.Failures {
		fmt.Fprintf(w, "warning: %v\n", f)
	}
	if n := len(res.EmptyUnits); n > 0 {
		fmt.Fprintf(w, "note: %d of %d units returned no data\n", n, len(res.Units))
	}
}
