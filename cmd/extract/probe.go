package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newProbeCmd(g *globalOptions) *cobra.Command {
	sel := &selectionFlags{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Count the observations of the first planned unit without fetching them",
		Long: `Probe resolves the location, plans the selection and asks the extractor
how many daily observations the first unit would return. Use it to check
credentials and coverage before starting a long extraction.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := sel.locationRequest(cmd)
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
			res, err := rt.pipeline.Probe(ctx, sel.selection(loc.Point))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "location:     %.4f, %.4f", loc.Point.Lat, loc.Point.Lon)
			if loc.Name != "" {
				fmt.Fprintf(out, " (%s)", loc.Name)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "unit:         %s\n", res.Unit)
			fmt.Fprintf(out, "observations: %d\n", res.Count)
			fmt.Fprintf(out, "elapsed:      %s\n", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}
