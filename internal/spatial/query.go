// Package spatial defines the feature query contract shared by every data
// source and the planar geometry helpers the catchment engine relies on.
package spatial

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// SRID is the spatial reference every geometry in this module is expressed in.
const SRID = 4326

// Relation names the spatial relationship a query filters on.
type Relation string

// RelIntersects is the only relationship the census layers are queried with.
const RelIntersects Relation = "intersects"

// Unit is a linear distance unit.
type Unit string

// Supported distance units.
const (
	UnitMiles  Unit = "miles"
	UnitMeters Unit = "meters"
)

const metersPerMile = 1609.344

// Distance is a search radius around the query geometry.
type Distance struct {
	Value float64
	Unit  Unit
}

// Meters converts the distance to meters.
func (d Distance) Meters() float64 {
	if d.Unit == UnitMiles {
		return d.Value * metersPerMile
	}
	return d.Value
}

// Miles converts the distance to statute miles.
func (d Distance) Miles() float64 {
	if d.Unit == UnitMiles {
		return d.Value
	}
	return d.Value / metersPerMile
}

// Query describes one spatial query against a feature layer.
type Query struct {
	// Geometry is a point or polygon. A nil geometry selects every feature.
	Geometry geom.T
	// Distance buffers Geometry before the relationship test. Nil means none.
	Distance *Distance
	// Relation must be RelIntersects.
	Relation Relation
	// OutFields lists the attributes to return. Empty or "*" returns all.
	OutFields []string
}

// Validate checks the query is one the sources know how to answer.
func (q Query) Validate() error {
	if q.Relation != RelIntersects {
		return eris.Errorf("spatial: unsupported relation %q", q.Relation)
	}
	if q.Distance != nil {
		if q.Geometry == nil {
			return eris.New("spatial: distance requires a geometry")
		}
		if q.Distance.Value < 0 {
			return eris.Errorf("spatial: negative distance %v", q.Distance.Value)
		}
		if q.Distance.Unit != UnitMiles && q.Distance.Unit != UnitMeters {
			return eris.Errorf("spatial: unsupported unit %q", q.Distance.Unit)
		}
	}
	return nil
}

// AllFields reports whether the query asks for every attribute.
func (q Query) AllFields() bool {
	if len(q.OutFields) == 0 {
		return true
	}
	for _, f := range q.OutFields {
		if f == "*" {
			return true
		}
	}
	return false
}

// Feature is one record returned by a query.
type Feature struct {
	// ID is the source's own object identifier, if it has one.
	ID       string
	Geometry geom.T
	// Centroid is a label point supplied by the source. Optional.
	Centroid   *geom.Point
	Attributes Attributes
}

// Querier runs spatial queries against a single feature layer.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Feature, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context, q Query) ([]Feature, error)

// Query calls f.
func (f QuerierFunc) Query(ctx context.Context, q Query) ([]Feature, error) {
	return f(ctx, q)
}
