package source

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
	"github.com/sells-group/catchment/pkg/featureserver"
)

// FeatureLayer answers spatial queries from one ArcGIS feature service layer.
type FeatureLayer struct {
	client featureserver.Client
	url    string
}

// NewFeatureLayer returns a querier for the layer at url.
func NewFeatureLayer(client featureserver.Client, url string) *FeatureLayer {
	return &FeatureLayer{client: client, url: url}
}

// Query translates q into a feature service query and decodes the response.
func (l *FeatureLayer) Query(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	params, err := queryParams(q)
	if err != nil {
		return nil, err
	}
	fs, err := l.client.Query(ctx, l.url, params)
	if err != nil {
		return nil, err
	}
	return decodeFeatureSet(fs)
}

func queryParams(q spatial.Query) (featureserver.QueryParams, error) {
	p := featureserver.QueryParams{
		SpatialRel:     featureserver.RelIntersects,
		ReturnGeometry: true,
		ReturnCentroid: true,
	}
	if !q.AllFields() {
		p.OutFields = q.OutFields
	}
	if q.Geometry == nil {
		return p, nil
	}

	g, typ, err := featureserver.FromGeom(q.Geometry)
	if err != nil {
		return p, eris.Wrap(err, "source: encode query geometry")
	}
	p.Geometry = g
	p.GeometryType = typ

	if q.Distance != nil && q.Distance.Value > 0 {
		p.Distance = q.Distance.Value
		switch q.Distance.Unit {
		case spatial.UnitMiles:
			p.Units = featureserver.UnitStatuteMile
		default:
			p.Units = featureserver.UnitMeter
		}
	}
	return p, nil
}

func decodeFeatureSet(fs *featureserver.FeatureSet) ([]spatial.Feature, error) {
	out := make([]spatial.Feature, 0, len(fs.Features))
	for i, f := range fs.Features {
		g, err := f.Geometry.ToGeom()
		if err != nil {
			return nil, eris.Wrapf(err, "source: feature %d geometry", i)
		}
		var centroid *geom.Point
		if c, err := f.Centroid.ToGeom(); err == nil {
			centroid, _ = c.(*geom.Point)
		}

		attrs := spatial.Attributes(f.Attributes)
		id := ""
		if fs.ObjectIDFieldName != "" {
			id = attrs.String(fs.ObjectIDFieldName)
		}
		if id == "" {
			id = fmt.Sprint(i)
		}
		out = append(out, spatial.Feature{
			ID:         id,
			Geometry:   g,
			Centroid:   centroid,
			Attributes: attrs,
		})
	}
	return out, nil
}
