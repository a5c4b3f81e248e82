// Package postgis serves census layers from PostGIS tables.
//
// Every layer table has the same shape: a text id, a geometry column in
// EPSG:4326 and a jsonb bag of source attributes keyed by their original
// field names. See EnsureTable.
package postgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/catchment/internal/db"
	"github.com/sells-group/catchment/internal/spatial"
)

// Layer is a spatial.Querier over one PostGIS table.
type Layer struct {
	pool  db.Pool
	table pgx.Identifier
	name  string
}

// NewLayer returns a querier for table ("schema.table" or "table").
func NewLayer(pool db.Pool, table string) (*Layer, error) {
	id, err := db.ParseTable(table)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: layer")
	}
	return &Layer{pool: pool, table: id, name: table}, nil
}

// Name returns the table name the layer reads.
func (l *Layer) Name() string { return l.name }

// Query runs q against the table. Distance queries compare on geography so
// the radius is in meters on the ellipsoid; plain intersects stays planar.
func (l *Layer) Query(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := l.buildSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgis: query %s", l.name)
	}
	defer rows.Close()

	var out []spatial.Feature
	for rows.Next() {
		var id string
		var geomWKB, cenWKB, props []byte
		if err := rows.Scan(&id, &geomWKB, &cenWKB, &props); err != nil {
			return nil, eris.Wrapf(err, "postgis: scan %s", l.name)
		}
		f, err := decodeRow(id, geomWKB, cenWKB, props)
		if err != nil {
			return nil, eris.Wrapf(err, "postgis: decode %s row %s", l.name, id)
		}
		if !q.AllFields() {
			f.Attributes = spatial.NewFieldResolver(f.Attributes).Project(f.Attributes, q.OutFields)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgis: iterate %s", l.name)
	}
	return out, nil
}

func (l *Layer) buildSQL(q spatial.Query) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, ST_AsEWKB(geom), ST_AsEWKB(ST_Centroid(geom)), properties FROM %s", l.table.Sanitize())

	if q.Geometry == nil {
		b.WriteString(" ORDER BY id")
		return b.String(), nil, nil
	}

	g, err := withSRID(q.Geometry)
	if err != nil {
		return "", nil, err
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return "", nil, eris.Wrap(err, "postgis: encode query geometry")
	}

	if q.Distance != nil && q.Distance.Value > 0 {
		b.WriteString(" WHERE ST_DWithin(geom::geography, ST_GeomFromEWKB($1)::geography, $2)")
		b.WriteString(" ORDER BY id")
		return b.String(), []any{data, q.Distance.Meters()}, nil
	}
	b.WriteString(" WHERE ST_Intersects(geom, ST_GeomFromEWKB($1))")
	b.WriteString(" ORDER BY id")
	return b.String(), []any{data}, nil
}

// withSRID returns g tagged with the module SRID, cloning where go-geom
// allows so the caller's geometry is left untouched.
func withSRID(g geom.T) (geom.T, error) {
	if g.SRID() == spatial.SRID {
		return g, nil
	}
	switch t := g.(type) {
	case *geom.Point:
		return t.Clone().SetSRID(spatial.SRID), nil
	case *geom.Polygon:
		return t.Clone().SetSRID(spatial.SRID), nil
	case *geom.MultiPolygon:
		return t.Clone().SetSRID(spatial.SRID), nil
	default:
		return nil, eris.Errorf("postgis: unsupported query geometry %T", g)
	}
}

func decodeRow(id string, geomWKB, cenWKB, props []byte) (spatial.Feature, error) {
	f := spatial.Feature{ID: id, Attributes: spatial.Attributes{}}
	if len(geomWKB) > 0 {
		g, err := ewkb.Unmarshal(geomWKB)
		if err != nil {
			return f, eris.Wrap(err, "geometry")
		}
		f.Geometry = g
	}
	if len(cenWKB) > 0 {
		c, err := ewkb.Unmarshal(cenWKB)
		if err != nil {
			return f, eris.Wrap(err, "centroid")
		}
		if p, ok := c.(*geom.Point); ok && !p.Empty() {
			f.Centroid = p
		}
	}
	if len(props) > 0 {
		dec := json.NewDecoder(bytes.NewReader(props))
		dec.UseNumber()
		if err := dec.Decode(&f.Attributes); err != nil {
			return f, eris.Wrap(err, "properties")
		}
	}
	return f, nil
}
