package catchment

import (
	"context"
	"sync/atomic"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
)

// box returns a clockwise square of the given half-width centered on (x, y).
func box(x, y, half float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x - half, y - half,
		x - half, y + half,
		x + half, y + half,
		x + half, y - half,
		x - half, y - half,
	}, []int{10}).SetSRID(spatial.SRID)
}

func feature(x, y, half float64, attrs spatial.Attributes) spatial.Feature {
	return spatial.Feature{Geometry: box(x, y, half), Attributes: attrs}
}

// unit builds a GeoUnit at (x, y) with the given households.
func unit(id string, x, y float64, households int64) GeoUnit {
	return GeoUnit{
		ID:         id,
		Geometry:   box(x, y, 0.001),
		Point:      geom.Coord{x, y},
		Households: households,
	}
}

func ptr(f float64) *float64 { return &f }

// staticLayer returns the same features for every query and counts calls.
type staticLayer struct {
	features []spatial.Feature
	err      error
	calls    atomic.Int32
	last     atomic.Pointer[spatial.Query]
}

func (s *staticLayer) Query(_ context.Context, q spatial.Query) ([]spatial.Feature, error) {
	s.calls.Add(1)
	s.last.Store(&q)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]spatial.Feature, len(s.features))
	copy(out, s.features)
	return out, nil
}
