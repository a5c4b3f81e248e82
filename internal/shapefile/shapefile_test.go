package shapefile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
)

// square returns a clockwise ring around (x, y).
func square(x, y, half float64) []shp.Point {
	return []shp.Point{
		{X: x - half, Y: y - half},
		{X: x - half, Y: y + half},
		{X: x + half, Y: y + half},
		{X: x + half, Y: y - half},
		{X: x - half, Y: y - half},
	}
}

type record struct {
	geoid      string
	x, y       float64
	households int
	alone      float64
}

func writeBlockGroups(t *testing.T, records []record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "block_groups.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 12),
		shp.NumberField("H0010001", 10),
		shp.FloatField("P017_calc_", 10, 1),
		shp.StringField("NOTE", 8),
	}))
	for i, r := range records {
		w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{square(r.x, r.y, 0.01)})))
		require.NoError(t, w.WriteAttribute(i, 0, r.geoid))
		require.NoError(t, w.WriteAttribute(i, 1, r.households))
		require.NoError(t, w.WriteAttribute(i, 2, r.alone))
	}
	w.Close()

	// The writer names the attribute table "<base>dbf" without the dot.
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

func ids(fs []spatial.Feature) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Attributes.String("GEOID"))
	}
	sort.Strings(out)
	return out
}

func TestRead(t *testing.T) {
	path := writeBlockGroups(t, []record{
		{geoid: "060372073012", x: -118.25, y: 34.05, households: 812, alone: 90.5},
		{geoid: "060372073013", x: -118.20, y: 34.05, households: 640, alone: 12},
	})

	features, err := Read(path)
	require.NoError(t, err)
	require.Len(t, features, 2)

	f := features[0]
	assert.Equal(t, "0", f.ID)
	assert.Equal(t, "060372073012", f.Attributes["GEOID"])
	assert.Equal(t, 812.0, f.Attributes["H0010001"])
	assert.Equal(t, 90.5, f.Attributes["P017_calc_"])
	assert.Nil(t, f.Attributes["NOTE"])

	mp, ok := f.Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
	pt, ok := spatial.RepresentativePoint(f)
	require.True(t, ok)
	assert.InDelta(t, -118.25, pt.X(), 1e-9)
	assert.InDelta(t, 34.05, pt.Y(), 1e-9)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}

func TestPolygonToMultiPolygon_Holes(t *testing.T) {
	outer := square(0, 0, 2)
	hole := []shp.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: -1}}
	second := square(10, 10, 1)
	poly := shp.NewPolyLine([][]shp.Point{outer, hole, second})

	g, err := polygonToMultiPolygon(poly.Parts, poly.Points)
	require.NoError(t, err)
	mp := g.(*geom.MultiPolygon)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
}

func TestPolygonToMultiPolygon_BadParts(t *testing.T) {
	_, err := polygonToMultiPolygon([]int32{0, 9}, square(0, 0, 1))
	assert.Error(t, err)

	g, err := polygonToMultiPolygon(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestLayer_QueryRadius(t *testing.T) {
	path := writeBlockGroups(t, []record{
		{geoid: "near", x: -118.25, y: 34.05, households: 10},
		{geoid: "edge", x: -118.25, y: 34.70, households: 10},
		{geoid: "far", x: -116.00, y: 34.05, households: 10},
	})
	l, err := Open("block_groups", path)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, "block_groups", l.Name())

	got, err := l.Query(context.Background(), spatial.Query{
		Geometry:  spatial.NewPoint(-118.25, 34.05),
		Distance:  &spatial.Distance{Value: 50, Unit: spatial.UnitMiles},
		Relation:  spatial.RelIntersects,
		OutFields: []string{"GEOID", "H0010001", "P017_calc_numAlone"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"edge", "near"}, ids(got))
	for _, f := range got {
		assert.Contains(t, f.Attributes, "P017_calc_numAlone")
		assert.NotContains(t, f.Attributes, "NOTE")
	}
}

func TestLayer_QueryEnvelope(t *testing.T) {
	l := NewLayer("income", []spatial.Feature{
		{ID: "a", Geometry: spatial.BoundsPolygon(geom.NewBounds(geom.XY).Set(0, 0, 1, 1)), Attributes: spatial.Attributes{"GEOID": "a"}},
		{ID: "b", Geometry: spatial.BoundsPolygon(geom.NewBounds(geom.XY).Set(5, 5, 6, 6)), Attributes: spatial.Attributes{"GEOID": "b"}},
		{ID: "c", Attributes: spatial.Attributes{"GEOID": "c"}},
	})

	got, err := l.Query(context.Background(), spatial.Query{
		Geometry: spatial.BoundsPolygon(geom.NewBounds(geom.XY).Set(0.5, 0.5, 2, 2)),
		Relation: spatial.RelIntersects,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))

	all, err := l.Query(context.Background(), spatial.Query{Relation: spatial.RelIntersects})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLayer_QueryRejectsInvalid(t *testing.T) {
	l := NewLayer("income", nil)
	_, err := l.Query(context.Background(), spatial.Query{Relation: "contains"})
	assert.Error(t, err)
}

func TestLayer_QueryCanceled(t *testing.T) {
	l := NewLayer("income", []spatial.Feature{
		{Geometry: spatial.NewPoint(0, 0)},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Query(ctx, spatial.Query{Geometry: spatial.NewPoint(0, 0), Relation: spatial.RelIntersects})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchArea_GrowsPolygonBounds(t *testing.T) {
	q := spatial.Query{
		Geometry: spatial.BoundsPolygon(geom.NewBounds(geom.XY).Set(0, 0, 1, 1)),
		Distance: &spatial.Distance{Value: 69, Unit: spatial.UnitMiles},
		Relation: spatial.RelIntersects,
	}
	g, err := searchArea(q)
	require.NoError(t, err)
	b := g.Bounds()
	assert.InDelta(t, -1.0, b.Min(1), 1e-9)
	assert.InDelta(t, 2.0, b.Max(1), 1e-9)
	assert.Less(t, b.Min(0), -1.0)
}
