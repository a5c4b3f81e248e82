package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/config"
	"github.com/sells-group/catchment/internal/db"
	"github.com/sells-group/catchment/internal/postgis"
	"github.com/sells-group/catchment/internal/resilience"
	"github.com/sells-group/catchment/internal/shapefile"
	"github.com/sells-group/catchment/internal/sites"
	"github.com/sells-group/catchment/internal/source"
)

var (
	importLayer    string
	importShp      string
	importURL      string
	importCacheDir string
	importIDField  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a shapefile layer into its PostGIS table",
	Example: `  catchment import --layer block_groups --shp tl_2020_06_bg.shp
  catchment import --layer stores --shp stores.shp --id-field StoreNo
  catchment import --layer income --url https://example.com/exports/acs_income.zip`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		target, err := importTarget(cfg.PostGIS, importLayer, importIDField)
		if err != nil {
			return err
		}

		shpPath := importShp
		if importURL != "" {
			dir := importCacheDir
			if dir == "" {
				tmp, err := os.MkdirTemp("", "catchment-import-*")
				if err != nil {
					return eris.Wrap(err, "import: temp dir")
				}
				defer os.RemoveAll(tmp) //nolint:errcheck
				dir = tmp
			}
			retry := cfg.Retry.Policy()
			retry.OnRetry = resilience.RetryLogger("download", importLayer)
			if shpPath, err = shapefile.Download(ctx, importURL, dir, retry); err != nil {
				return err
			}
		}

		pool, err := db.Connect(ctx, cfg.PostGIS.DatabaseURL, &db.PoolConfig{MaxConns: cfg.PostGIS.MaxConns})
		if err != nil {
			return err
		}
		defer pool.Close()

		return importShapefile(ctx, pool, cmd.OutOrStdout(), shpPath, target)
	},
}

// layerImport is where and under which names a layer is stored.
type layerImport struct {
	table   string
	idField string
	fields  []string
}

// importTarget resolves the table, key field and canonical field names for
// a layer name.
func importTarget(pg config.PostGISConfig, layer, idField string) (layerImport, error) {
	var t layerImport
	switch layer {
	case catchment.LayerBlockGroups:
		t = layerImport{pg.BlockGroupsTable, catchment.FieldGEOID, catchment.PrimaryFields}
	case catchment.LayerIncome:
		t = layerImport{pg.IncomeTable, catchment.FieldGEOID, catchment.IncomeFields}
	case catchment.LayerEducation:
		t = layerImport{pg.EducationTable, catchment.FieldGEOID, catchment.EducationFields}
	case source.LayerStores:
		t = layerImport{pg.StoresTable, sites.FieldStoreNo, sites.Fields}
	default:
		return t, eris.Errorf("unknown layer %q (want %s, %s, %s or %s)", layer,
			catchment.LayerBlockGroups, catchment.LayerIncome, catchment.LayerEducation, source.LayerStores)
	}
	if t.table == "" {
		return t, eris.Errorf("no postgis table configured for layer %q", layer)
	}
	if idField != "" {
		t.idField = idField
	}
	return t, nil
}

func importShapefile(ctx context.Context, pool db.Pool, out io.Writer, path string, t layerImport) error {
	features, err := shapefile.Read(path)
	if err != nil {
		return eris.Wrap(err, "import")
	}
	n, err := postgis.Import(ctx, pool, t.table, t.idField, t.fields, features)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "imported %d of %d features into %s\n", n, len(features), t.table)
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importLayer, "layer", "", "layer to load: block_groups, income, education or stores (required)")
	importCmd.Flags().StringVar(&importShp, "shp", "", "path to the .shp file")
	importCmd.Flags().StringVar(&importURL, "url", "", "download a zipped shapefile from this URL instead")
	importCmd.Flags().StringVar(&importCacheDir, "cache-dir", "", "keep downloaded archives here (default: a temp dir removed afterwards)")
	importCmd.Flags().StringVar(&importIDField, "id-field", "", "attribute holding the record key (default GEOID, StoreNo for stores)")
	_ = importCmd.MarkFlagRequired("layer")
	importCmd.MarkFlagsOneRequired("shp", "url")
	importCmd.MarkFlagsMutuallyExclusive("shp", "url")
	rootCmd.AddCommand(importCmd)
}
