package catchment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/catchment/internal/spatial"
)

func blockGroup(id string, x, y float64, households, population, age float64) spatial.Feature {
	return feature(x, y, 0.01, spatial.Attributes{
		FieldGEOID:       id,
		FieldHouseholds:  households,
		FieldPopulation:  population,
		FieldMedianAge:   age,
		FieldLivingAlone: households / 4,
		FieldPopDensity:  100.0,
		FieldShapeArea:   SqMetersPerSqMile,
	})
}

func testLayers() (Layers, *staticLayer, *staticLayer, *staticLayer) {
	bg := &staticLayer{features: []spatial.Feature{
		blockGroup("far", -118.0, 34.0, 9000, 20000, 50),
		blockGroup("near", -118.24, 34.05, 4000, 10000, 30),
		blockGroup("mid", -118.30, 34.05, 3000, 6000, 40),
	}}
	inc := &staticLayer{features: []spatial.Feature{
		feature(-118.24, 34.05, 0.02, spatial.Attributes{FieldMedianIncome: 80000.0, FieldIncomeHouseholds: 4000.0}),
		feature(-118.30, 34.05, 0.02, spatial.Attributes{FieldMedianIncome: 40000.0, FieldIncomeHouseholds: 1000.0}),
	}}
	edu := &staticLayer{features: []spatial.Feature{
		feature(-118.24, 34.05, 0.02, spatial.Attributes{FieldEducationPct: 40.0, FieldEducationEligible: 100.0}),
		feature(-118.30, 34.05, 0.02, spatial.Attributes{FieldEducationPct: 60.0, FieldEducationEligible: 300.0}),
	}}
	return Layers{BlockGroups: bg, Income: inc, Education: edu}, bg, inc, edu
}

func TestNewAnalyzer_RequiresLayers(t *testing.T) {
	_, err := NewAnalyzer(Layers{BlockGroups: &staticLayer{}})
	assert.Error(t, err)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	layers, bg, _, _ := testLayers()
	a, err := NewAnalyzer(layers)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Request{
		Center: &Center{Lng: -118.25, Lat: 34.05},
		Target: 7000,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, RolePrimary, res.Role)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, []string{"near", "mid"}, ids(res.Units))
	assert.Equal(t, int64(7000), res.TotalHouseholds)
	assert.True(t, res.TargetMet)

	d := res.Demographics
	assert.Equal(t, int64(16000), d.TotalPop)
	assert.Equal(t, int64(1750), d.TotalAlone)
	assert.InDelta(t, (30*10000.0+40*6000.0)/16000.0, d.AvgMedianAge, 1e-9)
	assert.InDelta(t, 2.0, d.TotalAreaSqMi, 1e-9)
	assert.InDelta(t, 8000.0, d.AvgPopDensity, 1e-9)
	require.NotNil(t, d.AvgMedianIncome)
	assert.InDelta(t, 72000.0, *d.AvgMedianIncome, 1e-9)
	require.NotNil(t, d.AvgEduPct)
	assert.InDelta(t, 55.0, *d.AvgEduPct, 1e-9)

	require.Len(t, res.Graphics, 2)
	for _, g := range res.Graphics {
		assert.Equal(t, SymbolFor(RolePrimary), g.Symbol)
		assert.NotNil(t, g.Geometry)
	}

	q := bg.last.Load()
	require.NotNil(t, q)
	require.NotNil(t, q.Distance)
	assert.Equal(t, spatial.Distance{Value: SearchRadiusMiles, Unit: spatial.UnitMiles}, *q.Distance)
	assert.Equal(t, spatial.RelIntersects, q.Relation)
	assert.Equal(t, PrimaryFields, q.OutFields)
}

func TestAnalyze_ComparisonRoleUsesBlue(t *testing.T) {
	layers, _, _, _ := testLayers()
	a, err := NewAnalyzer(layers)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Request{
		ID:     "cmp-1",
		Role:   RoleComparison,
		Center: &Center{Lng: -118.25, Lat: 34.05},
		Target: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", res.ID)
	require.Len(t, res.Graphics, 1)
	assert.Equal(t, comparisonBlue, res.Graphics[0].Symbol.Outline.Color)
	assert.Equal(t, transparent, res.Graphics[0].Symbol.Color)
}

func TestAnalyze_InvalidInputSelectsNothing(t *testing.T) {
	cases := map[string]Request{
		"no center":   {Target: 100},
		"nan center":  {Center: &Center{Lng: math.NaN(), Lat: 34}, Target: 100},
		"zero target": {Center: &Center{Lng: -118.25, Lat: 34.05}},
		"negative":    {Center: &Center{Lng: -118.25, Lat: 34.05}, Target: -10},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			layers, bg, inc, edu := testLayers()
			a, err := NewAnalyzer(layers)
			require.NoError(t, err)

			res, err := a.Analyze(context.Background(), req)
			require.NoError(t, err)
			assert.Empty(t, res.Units)
			assert.Empty(t, res.Graphics)
			assert.False(t, res.TargetMet)
			assert.Equal(t, Demographics{}, res.Demographics)
			assert.Equal(t, int32(0), bg.calls.Load()+inc.calls.Load()+edu.calls.Load())
		})
	}
}

func TestAnalyze_NoCandidates(t *testing.T) {
	a, err := NewAnalyzer(Layers{BlockGroups: &staticLayer{}, Income: &staticLayer{}, Education: &staticLayer{}})
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Request{Center: &Center{Lng: 0, Lat: 0}, Target: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Units)
	assert.Equal(t, 0, res.Candidates)
	assert.Nil(t, res.Demographics.AvgMedianIncome)
	assert.Nil(t, res.Demographics.AvgEduPct)
}

func TestAnalyze_QueryFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("HTTP 503")
	cases := map[string]func(*Layers){
		LayerBlockGroups: func(l *Layers) { l.BlockGroups = &staticLayer{err: boom} },
		LayerIncome:      func(l *Layers) { l.Income = &staticLayer{err: boom} },
		LayerEducation:   func(l *Layers) { l.Education = &staticLayer{err: boom} },
	}
	for layer, breakIt := range cases {
		t.Run(layer, func(t *testing.T) {
			layers, _, _, _ := testLayers()
			breakIt(&layers)
			a, err := NewAnalyzer(layers)
			require.NoError(t, err)

			res, err := a.Analyze(context.Background(), Request{
				Center: &Center{Lng: -118.25, Lat: 34.05},
				Target: 7000,
			})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrQueryFailure)

			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, layer, qe.Layer)
		})
	}
}

func TestAnalyze_SkipsCandidatesWithoutGeometry(t *testing.T) {
	bg := &staticLayer{features: []spatial.Feature{
		{Attributes: spatial.Attributes{FieldGEOID: "ghost", FieldHouseholds: 5000.0}},
		blockGroup("real", 1, 1, 10, 20, 30),
	}}
	a, err := NewAnalyzer(Layers{BlockGroups: bg, Income: &staticLayer{}, Education: &staticLayer{}})
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Request{Center: &Center{Lng: 1, Lat: 1}, Target: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, []string{"real"}, ids(res.Units))
	assert.False(t, res.TargetMet)
}
