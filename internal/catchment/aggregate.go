package catchment

// Demographics summarizes a selection. AvgMedianIncome and AvgEduPct are nil
// when no contributing auxiliary record carried a positive weight.
type Demographics struct {
	TotalPop        int64    `json:"total_pop" yaml:"total_pop"`
	TotalAlone      int64    `json:"total_alone" yaml:"total_alone"`
	AvgMedianAge    float64  `json:"avg_median_age" yaml:"avg_median_age"`
	AvgPopDensity   float64  `json:"avg_pop_density" yaml:"avg_pop_density"`
	AvgMedianIncome *float64 `json:"avg_median_income" yaml:"avg_median_income"`
	AvgEduPct       *float64 `json:"avg_edu_pct" yaml:"avg_edu_pct"`
	TotalAreaSqMi   float64  `json:"total_area_sq_mi" yaml:"total_area_sq_mi"`
}

// weightedMean accumulates value*weight pairs, skipping absent values and
// non-positive weights.
type weightedMean struct {
	sum    float64
	weight float64
}

func (w *weightedMean) add(value *float64, weight int64) {
	if value == nil || weight <= 0 {
		return
	}
	w.sum += *value * float64(weight)
	w.weight += float64(weight)
}

// mean returns nil when nothing was accumulated.
func (w weightedMean) mean() *float64 {
	if w.weight <= 0 {
		return nil
	}
	m := w.sum / w.weight
	return &m
}

// Aggregate computes population, living-alone, population-weighted median
// age, area and total-based density over units in one pass.
func Aggregate(units []GeoUnit) Demographics {
	var (
		d   Demographics
		age weightedMean
	)
	for _, u := range units {
		d.TotalPop += u.Population
		d.TotalAlone += u.LivingAlone
		age.add(u.MedianAge, u.Population)
		d.TotalAreaSqMi += u.AreaSqMi()
	}

	if m := age.mean(); m != nil {
		d.AvgMedianAge = *m
	}
	if d.TotalAreaSqMi > 0 {
		d.AvgPopDensity = float64(d.TotalPop) / d.TotalAreaSqMi
	}
	return d
}
