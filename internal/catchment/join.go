package catchment

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catchment/internal/spatial"
)

var tracer = otel.Tracer("github.com/sells-group/catchment/internal/catchment")

// AuxiliaryStats is the outcome of joining income and education onto a
// selection.
type AuxiliaryStats struct {
	AvgMedianIncome *float64
	AvgEduPct       *float64
	// Contributor counts are records that intersect at least one selected unit.
	IncomeContributors    int
	EducationContributors int
}

// Joiner spatially joins the income and education layers onto a selection.
type Joiner struct {
	income    spatial.Querier
	education spatial.Querier
}

// NewJoiner creates a Joiner over the two auxiliary layers.
func NewJoiner(income, education spatial.Querier) *Joiner {
	return &Joiner{income: income, education: education}
}

// Join queries both auxiliary layers with the selection's envelope, keeps the
// records whose polygons intersect any selected unit and computes weighted
// averages. Either query failing fails the whole join.
func (j *Joiner) Join(ctx context.Context, units []GeoUnit) (AuxiliaryStats, error) {
	geoms := make([]geom.T, 0, len(units))
	for _, u := range units {
		if u.Geometry != nil {
			geoms = append(geoms, u.Geometry)
		}
	}
	bounds, ok := spatial.Envelope(geoms)
	if !ok {
		return AuxiliaryStats{}, nil
	}
	envelope := spatial.BoundsPolygon(bounds)

	var incomeFeatures, educationFeatures []spatial.Feature
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fs, err := queryLayer(gctx, j.income, LayerIncome, envelopeQuery(envelope, IncomeFields))
		incomeFeatures = fs
		return err
	})
	g.Go(func() error {
		fs, err := queryLayer(gctx, j.education, LayerEducation, envelopeQuery(envelope, EducationFields))
		educationFeatures = fs
		return err
	})
	if err := g.Wait(); err != nil {
		return AuxiliaryStats{}, err
	}

	matcher, err := spatial.NewMatcher(geoms)
	if err != nil {
		return AuxiliaryStats{}, eris.Wrap(err, "catchment: prepare selection geometry")
	}
	defer matcher.Close()

	var (
		stats     AuxiliaryStats
		income    weightedMean
		education weightedMean
	)
	for _, f := range incomeFeatures {
		rec := DecodeIncome(f)
		hit, err := matcher.IntersectsAny(rec.Geometry)
		if err != nil {
			return AuxiliaryStats{}, eris.Wrapf(err, "catchment: intersect income record %s", rec.ID)
		}
		if !hit {
			continue
		}
		stats.IncomeContributors++
		income.add(rec.MedianIncome, rec.HouseholdWeight)
	}
	for _, f := range educationFeatures {
		rec := DecodeEducation(f)
		hit, err := matcher.IntersectsAny(rec.Geometry)
		if err != nil {
			return AuxiliaryStats{}, eris.Wrapf(err, "catchment: intersect education record %s", rec.ID)
		}
		if !hit {
			continue
		}
		stats.EducationContributors++
		education.add(rec.EduPct, rec.EligiblePopulation)
	}

	stats.AvgMedianIncome = income.mean()
	stats.AvgEduPct = education.mean()
	return stats, nil
}

func envelopeQuery(envelope geom.T, fields []string) spatial.Query {
	return spatial.Query{
		Geometry:  envelope,
		Relation:  spatial.RelIntersects,
		OutFields: fields,
	}
}

// queryLayer runs one layer query inside a span and tags failures with the
// layer name.
func queryLayer(ctx context.Context, q spatial.Querier, layer string, query spatial.Query) ([]spatial.Feature, error) {
	ctx, span := tracer.Start(ctx, "catchment.query", trace.WithAttributes(attribute.String("layer", layer)))
	defer span.End()

	fs, err := q.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, queryFailure(layer, err)
	}
	span.SetAttributes(attribute.Int("features", len(fs)))
	return fs, nil
}
