package main

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/config"
	"github.com/sells-group/catchment/internal/resilience"
	"github.com/sells-group/catchment/internal/sites"
	"github.com/sells-group/catchment/internal/source"
	"github.com/sells-group/catchment/pkg/geocode"
)

var errAddressNotMatched = eris.New("address not matched")

// app bundles what the analysis commands share.
type app struct {
	runner   catchment.Runner
	session  *catchment.Session
	catalog  *sites.Catalog // nil without a store layer
	geocoder geocode.Client
	breakers *resilience.Breakers
	driver   string

	defaultTarget int64
	close         func()
}

// openApp validates cfg for mode and opens the configured layers.
func openApp(ctx context.Context, cfg *config.Config, mode string) (*app, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	set, err := source.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := catchment.NewAnalyzer(set.Layers)
	if err != nil {
		set.Close()
		return nil, err
	}

	a := newApp(analyzer, set.Breakers, int64(cfg.Analysis.DefaultTarget))
	a.driver = set.Driver
	a.close = set.Close
	a.geocoder = geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.URL),
		geocode.WithBenchmark(cfg.Geocode.Benchmark),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	)
	if set.Stores != nil {
		a.catalog = sites.NewCatalog(set.Stores)
	}
	return a, nil
}

func newApp(runner catchment.Runner, breakers *resilience.Breakers, defaultTarget int64) *app {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &app{
		runner:        runner,
		session:       catchment.NewSession(runner),
		breakers:      breakers,
		defaultTarget: defaultTarget,
	}
}

// Close releases the layers.
func (a *app) Close() {
	if a.close != nil {
		a.close()
	}
	_ = zap.L().Sync()
}

// centerInput is a store number, a street address or an explicit point.
type centerInput struct {
	StoreNo string
	Address string
	Lng     *float64
	Lat     *float64
}

func (in centerInput) empty() bool {
	return in.StoreNo == "" && in.Address == "" && in.Lng == nil && in.Lat == nil
}

// resolveCenter turns a store number, an address or a coordinate pair into
// a center, checked in that order.
func (a *app) resolveCenter(ctx context.Context, in centerInput) (*catchment.Center, error) {
	if in.StoreNo != "" {
		if a.catalog == nil {
			return nil, eris.New("no store layer configured; pass a point instead")
		}
		if err := a.catalog.Load(ctx); err != nil {
			return nil, err
		}
		store, err := a.catalog.Find(in.StoreNo)
		if err != nil {
			return nil, err
		}
		loc := store.Location
		return &loc, nil
	}

	if in.Address != "" {
		if a.geocoder == nil {
			return nil, eris.New("no geocoder configured; pass a point instead")
		}
		match, err := a.geocoder.Geocode(ctx, in.Address)
		if err != nil {
			return nil, err
		}
		if !match.Matched {
			return nil, eris.Wrapf(errAddressNotMatched, "%q", in.Address)
		}
		zap.L().Debug("geocoded center",
			zap.String("address", in.Address),
			zap.String("matched", match.MatchedAddress),
		)
		return &catchment.Center{Lng: match.Longitude, Lat: match.Latitude}, nil
	}

	if in.Lng == nil || in.Lat == nil {
		return nil, eris.New("a store number, an address or both longitude and latitude are required")
	}
	lng, lat := *in.Lng, *in.Lat
	if math.IsNaN(lng) || math.IsNaN(lat) || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return nil, eris.Errorf("invalid point %v, %v", lng, lat)
	}
	return &catchment.Center{Lng: lng, Lat: lat}, nil
}

// target falls back to the configured default when none was given.
func (a *app) target(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	return a.defaultTarget
}
