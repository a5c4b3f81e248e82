package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/report"
)

// outputOptions are shared by run and compare.
type outputOptions struct {
	format string
	xlsx   string
}

func (o *outputOptions) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.format, "format", "text", "output format: text, json, yaml or geojson")
	flags.StringVar(&o.xlsx, "xlsx", "", "also write an XLSX workbook to this path")
}

func (o outputOptions) write(out io.Writer, results ...*catchment.SelectionResult) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}
	if err := report.Write(out, format, results...); err != nil {
		return err
	}
	if o.xlsx != "" {
		if err := report.WriteXLSX(o.xlsx, results...); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", o.xlsx))
	}
	return nil
}

// centerFlags reads a store number, an address or a point from named flags.
type centerFlags struct {
	store, address, lng, lat string
}

func (c centerFlags) register(flags *pflag.FlagSet, what string) {
	flags.String(c.store, "", what+" store number")
	flags.String(c.address, "", what+" street address, geocoded")
	flags.Float64(c.lng, 0, what+" longitude")
	flags.Float64(c.lat, 0, what+" latitude")
}

func (c centerFlags) input(flags *pflag.FlagSet) centerInput {
	var in centerInput
	in.StoreNo, _ = flags.GetString(c.store)
	in.Address, _ = flags.GetString(c.address)
	if flags.Changed(c.lng) {
		v, _ := flags.GetFloat64(c.lng)
		in.Lng = &v
	}
	if flags.Changed(c.lat) {
		v, _ := flags.GetFloat64(c.lat)
		in.Lat = &v
	}
	return in
}

func targetFlag(flags *pflag.FlagSet) *int64 {
	if !flags.Changed("target") {
		return nil
	}
	v, _ := flags.GetInt64("target")
	return &v
}

var (
	runCenter = centerFlags{store: "store", address: "address", lng: "lng", lat: "lat"}
	runOutput outputOptions
	runRole   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select the catchment around one store or point",
	Example: `  catchment run --store 120
  catchment run --lng -118.25 --lat 34.05 --target 15000 --format json
  catchment run --address "600 W 7th St, Los Angeles, CA 90017"
  catchment run --store 120 --xlsx catchment.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		res, err := runOne(ctx, a, catchment.Role(runRole), runCenter.input(flags), targetFlag(flags))
		if err != nil {
			return err
		}
		return runOutput.write(cmd.OutOrStdout(), res)
	},
}

// runOne resolves the center and runs a single invocation.
func runOne(ctx context.Context, a *app, role catchment.Role, in centerInput, target *int64) (*catchment.SelectionResult, error) {
	if role == "" {
		role = catchment.RolePrimary
	}
	if !role.Valid() {
		return nil, eris.Errorf("unknown role %q", role)
	}
	center, err := a.resolveCenter(ctx, in)
	if err != nil {
		return nil, err
	}

	res, err := a.runner.Analyze(ctx, catchment.Request{
		Role:   role,
		Center: center,
		Target: a.target(target),
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyze")
	}
	return res, nil
}

func init() {
	flags := runCmd.Flags()
	runCenter.register(flags, "center")
	flags.Int64("target", 0, "household target (default from config)")
	flags.StringVar(&runRole, "role", string(catchment.RolePrimary), "result role: primary or comparison")
	runOutput.register(flags)
	rootCmd.AddCommand(runCmd)
}
