package spatial

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// NewPoint returns a WGS84 point.
func NewPoint(lng, lat float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
}

// PlanarDistance is the Euclidean norm of the latitude and longitude
// differences between a and b. It is a coordinate-space score, not a
// ground distance, and skews with latitude.
func PlanarDistance(a, b geom.Coord) float64 {
	dLat := a.Y() - b.Y()
	dLng := a.X() - b.X()
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// RepresentativePoint returns the point a feature is measured from: the
// source-supplied centroid when present, otherwise the geometry centroid,
// otherwise the geometry's first coordinate.
func RepresentativePoint(f Feature) (geom.Coord, bool) {
	if f.Centroid != nil && !f.Centroid.Empty() {
		return f.Centroid.Coords(), true
	}
	if f.Geometry == nil {
		return nil, false
	}
	if p, ok := f.Geometry.(*geom.Point); ok {
		if p.Empty() {
			return nil, false
		}
		return p.Coords(), true
	}
	if c, err := xy.Centroid(f.Geometry); err == nil && len(c) >= 2 && finite(c[0]) && finite(c[1]) {
		return geom.Coord{c[0], c[1]}, true
	}
	flat := f.Geometry.FlatCoords()
	if len(flat) < 2 {
		return nil, false
	}
	return geom.Coord{flat[0], flat[1]}, true
}

// Envelope returns the bounding box of the union of geoms. ok is false when
// no geometry contributes a coordinate.
func Envelope(geoms []geom.T) (*geom.Bounds, bool) {
	b := geom.NewBounds(geom.XY)
	for _, g := range geoms {
		if g == nil || len(g.FlatCoords()) == 0 {
			continue
		}
		b.Extend(g)
	}
	if b.IsEmpty() {
		return nil, false
	}
	return b, true
}

// BoundsPolygon converts a bounding box to a closed clockwise polygon.
func BoundsPolygon(b *geom.Bounds) *geom.Polygon {
	minX, minY := b.Min(0), b.Min(1)
	maxX, maxY := b.Max(0), b.Max(1)
	flat := []float64{
		minX, minY,
		minX, maxY,
		maxX, maxY,
		maxX, minY,
		minX, minY,
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(SRID)
}

// Circle approximates a radius around center with a polygon of the given
// number of segments, converting miles to degrees at the center's latitude.
func Circle(center geom.Coord, d Distance, segments int) *geom.Polygon {
	if segments < 8 {
		segments = 8
	}
	const milesPerDegreeLat = 69.0
	miles := d.Miles()
	dLat := miles / milesPerDegreeLat
	cosLat := math.Cos(center.Y() * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	dLng := miles / (milesPerDegreeLat * cosLat)

	flat := make([]float64, 0, (segments+1)*2)
	// Clockwise, matching the outer-ring convention of the census services.
	for i := 0; i < segments; i++ {
		theta := -2 * math.Pi * float64(i) / float64(segments)
		flat = append(flat, center.X()+dLng*math.Cos(theta), center.Y()+dLat*math.Sin(theta))
	}
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(SRID)
}

// PolygonFromRings assembles Esri-style rings into a multipolygon. Clockwise
// rings start a new polygon and counter-clockwise rings are holes of the
// polygon before them. When no ring is clockwise every ring is an outer.
func PolygonFromRings(rings [][]geom.Coord) (*geom.MultiPolygon, error) {
	closed := make([][]geom.Coord, 0, len(rings))
	anyClockwise := false
	for _, r := range rings {
		r = closeRing(r)
		if len(r) < 4 {
			continue
		}
		if signedArea(r) < 0 {
			anyClockwise = true
		}
		closed = append(closed, r)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	var current *geom.Polygon
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := mp.Push(current); err != nil {
			return eris.Wrap(err, "spatial: push polygon")
		}
		return nil
	}

	for _, r := range closed {
		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(r))
		outer := !anyClockwise || signedArea(r) < 0 || current == nil
		if outer {
			if err := flush(); err != nil {
				return nil, err
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			return nil, eris.Wrap(err, "spatial: push ring")
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.New("spatial: no valid rings")
	}
	return mp, nil
}

// signedArea is the shoelace area; negative for clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i].X()*ring[i+1].Y() - ring[i+1].X()*ring[i].Y()
	}
	return sum / 2
}

func closeRing(r []geom.Coord) []geom.Coord {
	if len(r) == 0 {
		return r
	}
	first, last := r[0], r[len(r)-1]
	if first.X() != last.X() || first.Y() != last.Y() {
		r = append(r[:len(r):len(r)], geom.Coord{first.X(), first.Y()})
	}
	return r
}

func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c.X(), c.Y())
	}
	return flat
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
