// Package shapefile serves census layers from local ESRI shapefiles.
package shapefile

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/spatial"
)

// Read loads every record of the shapefile at path. Polygon rings follow the
// shapefile convention (clockwise outers, counter-clockwise holes). Records
// with a null or unsupported shape keep a nil geometry.
func Read(path string) ([]spatial.Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	var (
		features []spatial.Feature
		skipped  int
	)
	for reader.Next() {
		n, shape := reader.Shape()

		attrs := make(spatial.Attributes, len(fields))
		for i, f := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			attrs[f.String()] = attributeValue(f, raw)
		}

		g, err := toGeom(shape)
		if err != nil || g == nil {
			zap.L().Debug("shapefile: record has no usable shape", zap.String("path", path), zap.Int("record", n), zap.Error(err))
			skipped++
		}
		features = append(features, spatial.Feature{
			ID:         strconv.Itoa(n),
			Geometry:   g,
			Attributes: attrs,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if skipped > 0 {
		zap.L().Warn("shapefile: records without usable geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return features, nil
}

// attributeValue types numeric DBF columns as float64 and blanks as nil.
func attributeValue(f shp.Field, raw string) any {
	if raw == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N', 'F':
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

func toGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case *shp.Point:
		return spatial.NewPoint(s.X, s.Y), nil
	case *shp.Polygon:
		return polygonToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return polygonToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return polygonToMultiPolygon(s.Parts, s.Points)
	default:
		return nil, nil
	}
}

func polygonToMultiPolygon(parts []int32, points []shp.Point) (geom.T, error) {
	if len(parts) == 0 || len(points) == 0 {
		return nil, nil
	}
	rings := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			return nil, eris.Errorf("shapefile: part %d spans [%d, %d) of %d points", i, start, end, len(points))
		}
		ring := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, geom.Coord{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	mp, err := spatial.PolygonFromRings(rings)
	if err != nil {
		return nil, err
	}
	return mp, nil
}
