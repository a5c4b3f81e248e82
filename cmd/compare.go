package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catchment/internal/catchment"
)

var (
	comparePrimary = centerFlags{store: "store", address: "address", lng: "lng", lat: "lat"}
	compareOther   = centerFlags{store: "vs-store", address: "vs-address", lng: "vs-lng", lat: "vs-lat"}
	compareOutput  outputOptions
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Select catchments around two centers side by side",
	Example: `  catchment compare --store 120 --vs-store 31
  catchment compare --store 120 --vs-lng -118.4 --vs-lat 34.0 --format geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		results, err := compareCenters(ctx, a, comparePrimary.input(flags), compareOther.input(flags), targetFlag(flags))
		if err != nil {
			return err
		}
		return compareOutput.write(cmd.OutOrStdout(), results...)
	},
}

// compareCenters runs the primary and comparison invocations concurrently.
// Each has its own request and result; a failure of either fails both.
func compareCenters(ctx context.Context, a *app, primary, other centerInput, target *int64) ([]*catchment.SelectionResult, error) {
	results := make([]*catchment.SelectionResult, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, run := range []struct {
		role catchment.Role
		in   centerInput
	}{
		{catchment.RolePrimary, primary},
		{catchment.RoleComparison, other},
	} {
		g.Go(func() error {
			res, err := runOne(gctx, a, run.role, run.in, target)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func init() {
	flags := compareCmd.Flags()
	comparePrimary.register(flags, "primary")
	compareOther.register(flags, "comparison")
	flags.Int64("target", 0, "household target for both runs (default from config)")
	compareOutput.register(flags)
	rootCmd.AddCommand(compareCmd)
}
