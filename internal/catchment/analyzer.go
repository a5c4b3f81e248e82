package catchment

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/spatial"
)

// Request is one catchment invocation.
type Request struct {
	// ID tags logs and the result. Generated when empty.
	ID     string
	Role   Role
	Center *Center
	// Target is the household threshold. Non-positive selects nothing.
	Target int64
}

func (r Request) roleOrDefault() Role {
	if r.Role == "" {
		return RolePrimary
	}
	return r.Role
}

func (r Request) hasCenter() bool {
	if r.Center == nil {
		return false
	}
	for _, v := range []float64{r.Center.Lng, r.Center.Lat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Layers holds the three feature layers an invocation reads.
type Layers struct {
	BlockGroups spatial.Querier
	Income      spatial.Querier
	Education   spatial.Querier
}

// Runner runs a single invocation.
type Runner interface {
	Analyze(ctx context.Context, req Request) (*SelectionResult, error)
}

// Analyzer runs invocations against a fixed set of layers. It holds no
// per-invocation state and is safe for concurrent use.
type Analyzer struct {
	layers Layers
	joiner *Joiner
}

// NewAnalyzer creates an Analyzer. Every layer is required.
func NewAnalyzer(layers Layers) (*Analyzer, error) {
	if layers.BlockGroups == nil || layers.Income == nil || layers.Education == nil {
		return nil, eris.New("catchment: block group, income and education layers are required")
	}
	return &Analyzer{
		layers: layers,
		joiner: NewJoiner(layers.Income, layers.Education),
	}, nil
}

// Analyze selects the catchment for req and computes its demographics. A
// missing center or non-positive target yields an empty result. Any query
// failure aborts the invocation with an error wrapping ErrQueryFailure.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*SelectionResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Role = req.roleOrDefault()
	log := zap.L().With(zap.String("invocation", req.ID), zap.String("role", string(req.Role)))

	if !req.hasCenter() || req.Target <= 0 {
		log.Debug("catchment: nothing to select", zap.Int64("target", req.Target), zap.Bool("center", req.hasCenter()))
		return EmptyResult(req), nil
	}

	ctx, span := tracer.Start(ctx, "catchment.analyze", trace.WithAttributes(
		attribute.String("invocation", req.ID),
		attribute.String("role", string(req.Role)),
		attribute.Int64("target", req.Target),
	))
	defer span.End()

	res, err := a.analyze(ctx, req, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("selected", len(res.Units)),
		attribute.Int64("households", res.TotalHouseholds),
	)
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request, log *zap.Logger) (*SelectionResult, error) {
	center := req.Center.Coord()
	features, err := queryLayer(ctx, a.layers.BlockGroups, LayerBlockGroups, spatial.Query{
		Geometry:  spatial.NewPoint(req.Center.Lng, req.Center.Lat),
		Distance:  &spatial.Distance{Value: SearchRadiusMiles, Unit: spatial.UnitMiles},
		Relation:  spatial.RelIntersects,
		OutFields: PrimaryFields,
	})
	if err != nil {
		log.Warn("catchment: candidate query failed", zap.Error(err))
		return nil, err
	}

	candidates := make([]GeoUnit, 0, len(features))
	var skipped int
	for _, f := range features {
		u, ok := DecodeGeoUnit(f)
		if !ok {
			skipped++
			continue
		}
		candidates = append(candidates, u)
	}
	if skipped > 0 {
		log.Debug("catchment: skipped candidates without geometry", zap.Int("skipped", skipped))
	}

	sel := SelectNearest(center, candidates, req.Target)
	demo := Aggregate(sel.Units)

	aux, err := a.joiner.Join(ctx, sel.Units)
	if err != nil {
		log.Warn("catchment: auxiliary join failed", zap.Error(err))
		return nil, err
	}

	res := Assemble(req, len(candidates), sel, demo, aux)
	log.Info("catchment selected",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(sel.Units)),
		zap.Int64("households", sel.TotalHouseholds),
		zap.Bool("target_met", res.TargetMet),
		zap.Int("income_records", aux.IncomeContributors),
		zap.Int("education_records", aux.EducationContributors),
	)
	return res, nil
}
