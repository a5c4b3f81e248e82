package shapefile

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/spatial"
)

// circleSegments approximates a search radius.
const circleSegments = 64

// Layer answers spatial queries from features held in memory. It is
// read-only after construction and safe for concurrent use.
type Layer struct {
	name     string
	features []spatial.Feature
	fields   spatial.FieldResolver
}

// Open reads the shapefile at path into a Layer.
func Open(name, path string) (*Layer, error) {
	features, err := Read(path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("shapefile: layer loaded",
		zap.String("layer", name),
		zap.String("path", path),
		zap.Int("features", len(features)),
	)
	return NewLayer(name, features), nil
}

// NewLayer wraps already decoded features.
func NewLayer(name string, features []spatial.Feature) *Layer {
	l := &Layer{name: name, features: features, fields: spatial.FieldResolver{}}
	if len(features) > 0 {
		l.fields = spatial.NewFieldResolver(features[0].Attributes)
	}
	return l
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Len returns the number of features held.
func (l *Layer) Len() int { return len(l.features) }

// Query returns the features whose geometry intersects q's geometry, after
// buffering it by q's distance.
func (l *Layer) Query(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.Geometry == nil {
		out := make([]spatial.Feature, 0, len(l.features))
		for _, f := range l.features {
			out = append(out, l.project(f, q))
		}
		return out, nil
	}

	filter, err := searchArea(q)
	if err != nil {
		return nil, err
	}
	m, err := spatial.NewMatcher([]geom.T{filter})
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: prepare %s filter", l.name)
	}
	defer m.Close()

	var out []spatial.Feature
	for i, f := range l.features {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrapf(err, "shapefile: query %s", l.name)
			}
		}
		hit, err := m.IntersectsAny(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "shapefile: intersect %s record %s", l.name, f.ID)
		}
		if hit {
			out = append(out, l.project(f, q))
		}
	}
	return out, nil
}

func (l *Layer) project(f spatial.Feature, q spatial.Query) spatial.Feature {
	if q.AllFields() {
		return f
	}
	f.Attributes = l.fields.Project(f.Attributes, q.OutFields)
	return f
}

// searchArea buffers the query geometry. Points become a circle; other
// geometries grow their bounding box by the distance.
func searchArea(q spatial.Query) (geom.T, error) {
	if q.Distance == nil || q.Distance.Value == 0 {
		return q.Geometry, nil
	}
	if p, ok := q.Geometry.(*geom.Point); ok {
		return spatial.Circle(p.Coords(), *q.Distance, circleSegments), nil
	}

	bounds, ok := spatial.Envelope([]geom.T{q.Geometry})
	if !ok {
		return nil, eris.New("shapefile: query geometry is empty")
	}
	const milesPerDegree = 69.0
	miles := q.Distance.Miles()
	dLat := miles / milesPerDegree
	midLat := (bounds.Min(1) + bounds.Max(1)) / 2
	dLng := miles / (milesPerDegree * math.Max(math.Cos(midLat*math.Pi/180), 1e-6))
	grown := geom.NewBounds(geom.XY).Set(
		bounds.Min(0)-dLng, bounds.Min(1)-dLat,
		bounds.Max(0)+dLng, bounds.Max(1)+dLat,
	)
	return spatial.BoundsPolygon(grown), nil
}
