package postgis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/db"
	"github.com/sells-group/catchment/internal/spatial"
)

var layerColumns = []string{"id", "geom", "properties"}

// EnsureTable creates the layer table and its spatial index if missing.
func EnsureTable(ctx context.Context, pool db.Pool, table string) error {
	id, err := db.ParseTable(table)
	if err != nil {
		return eris.Wrap(err, "postgis: ensure table")
	}

	var stmts []string
	if len(id) == 2 {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{id[0]}.Sanitize())
	}
	index := pgx.Identifier{id[len(id)-1] + "_geom_idx"}.Sanitize()
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	geom       geometry(Geometry, %d),
	properties JSONB NOT NULL DEFAULT '{}'::jsonb
)`, id.Sanitize(), spatial.SRID),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)", index, id.Sanitize()),
	)

	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return eris.Wrapf(err, "postgis: ensure %s", table)
		}
	}
	return nil
}

// Import replaces the contents of table with features, keyed by the value of
// idField, else the feature ID, else the record position.
// Columns that resolve to one of fields, including DBF names cut to ten
// characters, are stored under the field's full name.
func Import(ctx context.Context, pool db.Pool, table, idField string, fields []string, features []spatial.Feature) (int64, error) {
	if err := EnsureTable(ctx, pool, table); err != nil {
		return 0, err
	}
	id, err := db.ParseTable(table)
	if err != nil {
		return 0, eris.Wrap(err, "postgis: import")
	}

	rows := make([][]any, 0, len(features))
	seen := make(map[string]bool, len(features))
	var skipped int
	for i, f := range features {
		row, key, err := importRow(i, idField, fields, f)
		if err != nil {
			return 0, eris.Wrapf(err, "postgis: import %s record %d", table, i)
		}
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	if skipped > 0 {
		zap.L().Warn("postgis: duplicate ids dropped on import",
			zap.String("table", table),
			zap.Int("skipped", skipped),
		)
	}

	n, err := db.ReplaceTable(ctx, pool, id, layerColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgis: import")
	}
	zap.L().Info("postgis: layer imported", zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}

func importRow(i int, idField string, fields []string, f spatial.Feature) ([]any, string, error) {
	props := spatial.Canonical(f.Attributes, fields)
	key := props.String(idField)
	if idField == "" || key == "" {
		key = f.ID
	}
	if key == "" {
		key = fmt.Sprint(i)
	}

	var geomData []byte
	if f.Geometry != nil && len(f.Geometry.FlatCoords()) > 0 {
		g, err := withSRID(f.Geometry)
		if err != nil {
			return nil, "", err
		}
		geomData, err = ewkb.Marshal(g, ewkb.NDR)
		if err != nil {
			return nil, "", eris.Wrap(err, "encode geometry")
		}
	}

	propData, err := json.Marshal(props)
	if err != nil {
		return nil, "", eris.Wrap(err, "encode properties")
	}
	return []any{key, geomData, propData}, key, nil
}
