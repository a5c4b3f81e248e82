package featureserver

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
)

// Esri geometry type names.
const (
	GeometryPoint    = "esriGeometryPoint"
	GeometryPolygon  = "esriGeometryPolygon"
	GeometryEnvelope = "esriGeometryEnvelope"
)

// SpatialReference identifies a coordinate system by well-known ID.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Geometry is an Esri JSON point or polygon. Exactly one of the point or
// ring members is set on a decoded feature.
type Geometry struct {
	X                *float64          `json:"x,omitempty"`
	Y                *float64          `json:"y,omitempty"`
	Rings            [][][]float64     `json:"rings,omitempty"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// IsEmpty reports whether g carries no coordinates.
func (g *Geometry) IsEmpty() bool {
	return g == nil || ((g.X == nil || g.Y == nil) && len(g.Rings) == 0)
}

// ToGeom converts g to a go-geom point or multipolygon in EPSG:4326.
func (g *Geometry) ToGeom() (geom.T, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	if len(g.Rings) == 0 {
		return spatial.NewPoint(*g.X, *g.Y), nil
	}

	rings := make([][]geom.Coord, 0, len(g.Rings))
	for i, r := range g.Rings {
		ring := make([]geom.Coord, 0, len(r))
		for _, pt := range r {
			if len(pt) < 2 {
				return nil, eris.Errorf("featureserver: ring %d has a position with %d ordinates", i, len(pt))
			}
			ring = append(ring, geom.Coord{pt[0], pt[1]})
		}
		rings = append(rings, ring)
	}
	mp, err := spatial.PolygonFromRings(rings)
	if err != nil {
		return nil, eris.Wrap(err, "featureserver: decode rings")
	}
	return mp, nil
}

// FromGeom encodes a go-geom point, polygon or multipolygon as an Esri JSON
// geometry and returns its geometry type name.
func FromGeom(g geom.T) (*Geometry, string, error) {
	sr := &SpatialReference{WKID: spatial.SRID}
	switch t := g.(type) {
	case *geom.Point:
		x, y := t.X(), t.Y()
		return &Geometry{X: &x, Y: &y, SpatialReference: sr}, GeometryPoint, nil
	case *geom.Polygon:
		return &Geometry{Rings: polygonRings(t), SpatialReference: sr}, GeometryPolygon, nil
	case *geom.MultiPolygon:
		var rings [][][]float64
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		return &Geometry{Rings: rings, SpatialReference: sr}, GeometryPolygon, nil
	default:
		return nil, "", eris.Errorf("featureserver: unsupported query geometry %T", g)
	}
}

func polygonRings(p *geom.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([][]float64, len(coords))
		for j, c := range coords {
			ring[j] = []float64{c.X(), c.Y()}
		}
		rings = append(rings, ring)
	}
	return rings
}
