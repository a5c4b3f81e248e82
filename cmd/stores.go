package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catchment/internal/sites"
)

var (
	storesState      string
	storesListStates bool
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List the stores an analysis can be centered on",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		return listStores(ctx, a.catalog, cmd.OutOrStdout(), storesState, storesListStates)
	},
}

func listStores(ctx context.Context, catalog *sites.Catalog, out io.Writer, state string, statesOnly bool) error {
	if catalog == nil {
		return eris.New("no store layer configured")
	}
	if err := catalog.Load(ctx); err != nil {
		return err
	}

	if statesOnly {
		for _, s := range catalog.States() {
			_, _ = fmt.Fprintln(out, s)
		}
		return nil
	}

	stores := catalog.List(state)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STORE\tSTATE\tLNG\tLAT")
	_, _ = fmt.Fprintln(w, "-----\t-----\t---\t---")
	for _, s := range stores {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\n", s.StoreNo, s.State, s.Location.Lng, s.Location.Lat)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d stores\n", len(stores))
	return nil
}

func init() {
	storesCmd.Flags().StringVar(&storesState, "state", "", "only list stores in this state")
	storesCmd.Flags().BoolVar(&storesListStates, "states", false, "list the distinct states instead")
	rootCmd.AddCommand(storesCmd)
}
