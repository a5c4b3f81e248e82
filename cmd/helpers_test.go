package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/sites"
	"github.com/sells-group/catchment/pkg/geocode"
)

type runnerFunc func(ctx context.Context, req catchment.Request) (*catchment.SelectionResult, error)

func (f runnerFunc) Analyze(ctx context.Context, req catchment.Request) (*catchment.SelectionResult, error) {
	return f(ctx, req)
}

// echoRunner returns a one-unit result built from the request.
func echoRunner() runnerFunc {
	return func(ctx context.Context, req catchment.Request) (*catchment.SelectionResult, error) {
		res := catchment.EmptyResult(req)
		res.TotalHouseholds = req.Target
		res.TargetMet = req.Target > 0
		res.Graphics = []catchment.Graphic{{
			GEOID:      "060372073012",
			Geometry:   geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{req.Center.Lng, req.Center.Lat}),
			Symbol:     catchment.SymbolFor(res.Role),
			Households: req.Target,
		}}
		return res, nil
	}
}

func testCatalog() *sites.Catalog {
	return sites.NewStaticCatalog([]sites.Store{
		{StoreNo: "120", State: "CA", Location: catchment.Center{Lng: -118.3, Lat: 34.1}},
		{StoreNo: "31", State: "CA", Location: catchment.Center{Lng: -122.4, Lat: 37.8}},
		{StoreNo: "9", State: "NY", Location: catchment.Center{Lng: -73.9, Lat: 40.7}},
	})
}

func testApp(runner catchment.Runner) *app {
	a := newApp(runner, nil, 10000)
	a.catalog = testCatalog()
	a.driver = "arcgis"
	return a
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

// testGeocoder matches "600 W 7th St" and nothing else.
func testGeocoder(t *testing.T) geocode.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("address") != "600 W 7th St" {
			_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
			return
		}
		_, _ = io.WriteString(w, `{"result": {"addressMatches": [{
			"coordinates": {"x": -118.2566, "y": 34.0480},
			"matchedAddress": "600 W 7TH ST, LOS ANGELES, CA, 90017"
		}]}}`)
	}))
	t.Cleanup(srv.Close)
	return geocode.NewClient(geocode.WithBaseURL(srv.URL), geocode.WithRateLimit(1000))
}
