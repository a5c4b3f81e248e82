package report

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/catchment/internal/catchment"
)

// FeatureCollection converts the graphics of every result into GeoJSON
// features carrying the role, styling and per-unit counts.
func FeatureCollection(results ...*catchment.SelectionResult) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, res := range results {
		if res == nil {
			continue
		}
		fc.Features = append(fc.Features, graphicFeatures(res.Role, res.ID, res.Graphics)...)
	}
	return fc
}

// OverlayCollection converts a committed session overlay, primary first.
func OverlayCollection(overlay catchment.Overlay) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, role := range []catchment.Role{catchment.RolePrimary, catchment.RoleComparison} {
		layer, ok := overlay[role]
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, graphicFeatures(role, layer.ResultID, layer.Graphics)...)
	}
	return fc
}

func graphicFeatures(role catchment.Role, resultID string, graphics []catchment.Graphic) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(graphics))
	for _, g := range graphics {
		props := map[string]any{
			"role":         string(role),
			"result_id":    resultID,
			"geoid":        g.GEOID,
			"distance":     g.Distance,
			"households":   g.Households,
			"population":   g.Population,
			"area_sq_mi":   g.AreaSqMi,
			"fill":         hexColor(g.Symbol.Color),
			"fill-opacity": g.Symbol.Color[3],
			"stroke":       hexColor(g.Symbol.Outline.Color),
			"stroke-width": g.Symbol.Outline.Width,
		}
		if g.PopDensity != nil {
			props["pop_density"] = *g.PopDensity
		}
		out = append(out, &geojson.Feature{
			ID:         g.GEOID,
			Geometry:   g.Geometry,
			Properties: props,
		})
	}
	return out
}

// hexColor renders the RGB channels of c as #rrggbb.
func hexColor(c catchment.Color) string {
	ch := func(v float64) int {
		return int(math.Max(0, math.Min(255, math.Round(v))))
	}
	return fmt.Sprintf("#%02x%02x%02x", ch(c[0]), ch(c[1]), ch(c[2]))
}
