package catchment

import (
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
)

// Selection is the nearest-first prefix of the candidates.
type Selection struct {
	Units []GeoUnit
	// Distances holds the planar distance score of each selected unit.
	Distances       []float64
	TotalHouseholds int64
}

// TargetMet reports whether the selection reached target households.
func (s Selection) TargetMet(target int64) bool {
	return target > 0 && s.TotalHouseholds >= target
}

// SelectNearest orders candidates by planar distance from center, keeping
// query order on ties, and takes units until their households reach target.
// When the candidates run out first the whole set is returned. A
// non-positive target selects nothing. candidates is not modified.
func SelectNearest(center geom.Coord, candidates []GeoUnit, target int64) Selection {
	if target <= 0 || len(candidates) == 0 {
		return Selection{}
	}

	order := make([]int, len(candidates))
	dist := make([]float64, len(candidates))
	for i, c := range candidates {
		order[i] = i
		dist[i] = spatial.PlanarDistance(center, c.Point)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})

	var sel Selection
	for _, idx := range order {
		sel.Units = append(sel.Units, candidates[idx])
		sel.Distances = append(sel.Distances, dist[idx])
		sel.TotalHouseholds += candidates[idx].Households
		if sel.TotalHouseholds >= target {
			break
		}
	}
	return sel
}
