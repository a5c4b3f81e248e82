package spatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// Matcher answers "does this geometry intersect any of the targets" with a
// bounding box prefilter followed by an exact GEOS predicate.
type Matcher struct {
	targets []*geos.Geom
	bounds  []*geom.Bounds
}

// NewMatcher converts targets to GEOS geometries. Nil and empty targets are
// skipped. Call Close to release the GEOS memory.
func NewMatcher(targets []geom.T) (*Matcher, error) {
	m := &Matcher{}
	for _, t := range targets {
		if t == nil || len(t.FlatCoords()) == 0 {
			continue
		}
		g, err := toGEOS(t)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.targets = append(m.targets, g)
		m.bounds = append(m.bounds, t.Bounds())
	}
	return m, nil
}

// Len reports how many targets the matcher holds.
func (m *Matcher) Len() int { return len(m.targets) }

// IntersectsAny reports whether g intersects at least one target.
func (m *Matcher) IntersectsAny(g geom.T) (bool, error) {
	if g == nil || len(g.FlatCoords()) == 0 || len(m.targets) == 0 {
		return false, nil
	}
	gb := g.Bounds()

	var candidate *geos.Geom
	defer func() {
		if candidate != nil {
			candidate.Destroy()
		}
	}()

	for i, t := range m.targets {
		if !boundsOverlap(gb, m.bounds[i]) {
			continue
		}
		if candidate == nil {
			c, err := toGEOS(g)
			if err != nil {
				return false, err
			}
			candidate = c
		}
		if t.Intersects(candidate) {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the GEOS geometries.
func (m *Matcher) Close() {
	for _, t := range m.targets {
		t.Destroy()
	}
	m.targets = nil
	m.bounds = nil
}

// Intersects reports whether a and b share at least one point.
func Intersects(a, b geom.T) (bool, error) {
	m, err := NewMatcher([]geom.T{a})
	if err != nil {
		return false, err
	}
	defer m.Close()
	return m.IntersectsAny(b)
}

func toGEOS(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: encode WKB")
	}
	out, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: decode WKB into GEOS")
	}
	return out, nil
}

func boundsOverlap(a, b *geom.Bounds) bool {
	if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}
