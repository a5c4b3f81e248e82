// Package catchment selects the census block groups nearest a site until a
// household target is met and summarizes their demographics, joining income
// and educational attainment from independently queried layers.
package catchment

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/spatial"
)

// Primary layer fields (2020 DHC block groups).
const (
	FieldGEOID       = "GEOID"
	FieldHouseholds  = "H0010001"
	FieldPopulation  = "P0010001"
	FieldMedianAge   = "P0130001"
	FieldLivingAlone = "P017_calc_numAlone"
	FieldPopDensity  = "P001_calc_pctPopDensity"
	FieldShapeArea   = "Shape__Area"
)

// Auxiliary layer fields (ACS).
const (
	FieldMedianIncome      = "B19049_001E"
	FieldIncomeHouseholds  = "B19053_001E"
	FieldEducationPct      = "B15002_calc_pctGEBAE"
	FieldEducationEligible = "B15002_001E"
)

const (
	// SearchRadiusMiles bounds the candidate query around the center.
	SearchRadiusMiles = 50
	// SqMetersPerSqMile converts Shape__Area to square miles.
	SqMetersPerSqMile = 2589988.11
	// PopDensityToSqMile converts the raw density field to people per square mile.
	PopDensityToSqMile = 2.58999
)

// PrimaryFields are requested from the block group layer.
var PrimaryFields = []string{
	FieldGEOID,
	FieldHouseholds,
	FieldPopulation,
	FieldMedianAge,
	FieldLivingAlone,
	FieldPopDensity,
	FieldShapeArea,
}

// IncomeFields are requested from the income layer.
var IncomeFields = []string{FieldGEOID, FieldMedianIncome, FieldIncomeHouseholds}

// EducationFields are requested from the education layer.
var EducationFields = []string{FieldGEOID, FieldEducationPct, FieldEducationEligible}

// Center is the point a catchment is built around.
type Center struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Coord returns the center as an x/y coordinate.
func (c Center) Coord() geom.Coord { return geom.Coord{c.Lng, c.Lat} }

// GeoUnit is a census block group. Counts default to zero when the source
// omits them; optional reals stay nil.
type GeoUnit struct {
	ID            string     `json:"geoid" yaml:"geoid"`
	Geometry      geom.T     `json:"-" yaml:"-"`
	Point         geom.Coord `json:"-" yaml:"-"`
	Households    int64      `json:"households" yaml:"households"`
	Population    int64      `json:"population" yaml:"population"`
	MedianAge     *float64   `json:"median_age" yaml:"median_age"`
	LivingAlone   int64      `json:"living_alone" yaml:"living_alone"`
	PopDensityRaw *float64   `json:"-" yaml:"-"`
	AreaRaw       *float64   `json:"-" yaml:"-"`
}

// AreaSqMi is the unit's area in square miles, 0 when unknown.
func (u GeoUnit) AreaSqMi() float64 {
	if u.AreaRaw == nil || *u.AreaRaw <= 0 {
		return 0
	}
	return *u.AreaRaw / SqMetersPerSqMile
}

// PopDensitySqMi is the source's own density value in people per square mile.
func (u GeoUnit) PopDensitySqMi() (float64, bool) {
	if u.PopDensityRaw == nil {
		return 0, false
	}
	return *u.PopDensityRaw * PopDensityToSqMile, true
}

// IncomeRecord is one unit of the income layer.
type IncomeRecord struct {
	ID              string
	Geometry        geom.T
	MedianIncome    *float64
	HouseholdWeight int64
}

// EducationRecord is one unit of the educational attainment layer.
type EducationRecord struct {
	ID                 string
	Geometry           geom.T
	EduPct             *float64
	EligiblePopulation int64
}

// DecodeGeoUnit resolves a primary-layer feature into a GeoUnit. ok is false
// when the feature has no usable geometry to measure distance from.
func DecodeGeoUnit(f spatial.Feature) (GeoUnit, bool) {
	pt, ok := spatial.RepresentativePoint(f)
	if !ok {
		return GeoUnit{}, false
	}
	a := f.Attributes
	id := a.String(FieldGEOID)
	if id == "" {
		id = f.ID
	}
	return GeoUnit{
		ID:            id,
		Geometry:      f.Geometry,
		Point:         pt,
		Households:    a.Count(FieldHouseholds),
		Population:    a.Count(FieldPopulation),
		MedianAge:     nonNegative(a.OptionalFloat(FieldMedianAge)),
		LivingAlone:   a.Count(FieldLivingAlone),
		PopDensityRaw: a.OptionalFloat(FieldPopDensity),
		AreaRaw:       a.OptionalFloat(FieldShapeArea),
	}, true
}

// DecodeIncome resolves an income-layer feature.
func DecodeIncome(f spatial.Feature) IncomeRecord {
	a := f.Attributes
	return IncomeRecord{
		ID:              firstNonEmpty(a.String(FieldGEOID), f.ID),
		Geometry:        f.Geometry,
		MedianIncome:    a.OptionalFloat(FieldMedianIncome),
		HouseholdWeight: a.Count(FieldIncomeHouseholds),
	}
}

// DecodeEducation resolves an education-layer feature.
func DecodeEducation(f spatial.Feature) EducationRecord {
	a := f.Attributes
	return EducationRecord{
		ID:                 firstNonEmpty(a.String(FieldGEOID), f.ID),
		Geometry:           f.Geometry,
		EduPct:             a.OptionalFloat(FieldEducationPct),
		EligiblePopulation: a.Count(FieldEducationEligible),
	}
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
