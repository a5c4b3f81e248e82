// Package source builds the census and store layers an analysis reads from
// configuration: hosted ArcGIS feature services, PostGIS tables or local
// shapefiles.
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/config"
	"github.com/sells-group/catchment/internal/db"
	"github.com/sells-group/catchment/internal/postgis"
	"github.com/sells-group/catchment/internal/resilience"
	"github.com/sells-group/catchment/internal/shapefile"
	"github.com/sells-group/catchment/internal/spatial"
	"github.com/sells-group/catchment/pkg/featureserver"
)

// LayerStores names the store location layer.
const LayerStores = "stores"

// Set is an opened group of layers.
type Set struct {
	Driver string
	Layers catchment.Layers
	// Stores is nil when no store layer is configured.
	Stores spatial.Querier
	// Breakers tracks remote layers. Empty for local shapefiles.
	Breakers *resilience.Breakers

	closers []func()
}

// Close releases connections held by the set.
func (s *Set) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open builds the layers for cfg.Source.Driver.
func Open(ctx context.Context, cfg *config.Config) (*Set, error) {
	set := &Set{
		Driver:   cfg.Source.Driver,
		Breakers: resilience.NewBreakers(cfg.Circuit.Breaker()),
	}

	var err error
	switch cfg.Source.Driver {
	case config.DriverArcGIS:
		err = openArcGIS(cfg, set)
	case config.DriverPostGIS:
		err = openPostGIS(ctx, cfg, set)
	case config.DriverShapefile:
		err = openShapefiles(ctx, cfg, set)
	default:
		err = eris.Errorf("source: unknown driver %q", cfg.Source.Driver)
	}
	if err != nil {
		set.Close()
		return nil, err
	}

	zap.L().Info("source: layers ready",
		zap.String("driver", set.Driver),
		zap.Bool("stores", set.Stores != nil),
	)
	return set, nil
}

// NewFeatureClient builds the feature service client from cfg.
func NewFeatureClient(cfg config.ArcGISConfig) featureserver.Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []featureserver.Option{
		featureserver.WithHTTPClient(&http.Client{Timeout: timeout}),
		featureserver.WithPageSize(cfg.PageSize),
		featureserver.WithObjectIDField(cfg.ObjectIDField),
	}
	if cfg.Token != "" {
		opts = append(opts, featureserver.WithToken(cfg.Token))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, featureserver.WithRateLimit(cfg.RateLimit))
	}
	return featureserver.NewClient(opts...)
}

func openArcGIS(cfg *config.Config, set *Set) error {
	client := NewFeatureClient(cfg.ArcGIS)
	retry := cfg.Retry.Policy()
	layer := func(name, url string) spatial.Querier {
		return NewGuarded(NewFeatureLayer(client, url), config.DriverArcGIS, name, retry, set.Breakers)
	}

	set.Layers = catchment.Layers{
		BlockGroups: layer(catchment.LayerBlockGroups, cfg.ArcGIS.BlockGroupsURL),
		Income:      layer(catchment.LayerIncome, cfg.ArcGIS.IncomeURL),
		Education:   layer(catchment.LayerEducation, cfg.ArcGIS.EducationURL),
	}
	if cfg.ArcGIS.StoresURL != "" {
		set.Stores = layer(LayerStores, cfg.ArcGIS.StoresURL)
	}
	return nil
}

func openPostGIS(ctx context.Context, cfg *config.Config, set *Set) error {
	pool, err := db.Connect(ctx, cfg.PostGIS.DatabaseURL, &db.PoolConfig{MaxConns: cfg.PostGIS.MaxConns})
	if err != nil {
		return eris.Wrap(err, "source: postgis")
	}
	set.closers = append(set.closers, pool.Close)
	return bindPostGIS(pool, cfg, set)
}

func bindPostGIS(pool db.Pool, cfg *config.Config, set *Set) error {
	retry := cfg.Retry.Policy()
	layer := func(name, table string) (spatial.Querier, error) {
		l, err := postgis.NewLayer(pool, table)
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s layer", name)
		}
		return NewGuarded(l, config.DriverPostGIS, name, retry, set.Breakers), nil
	}

	var err error
	if set.Layers.BlockGroups, err = layer(catchment.LayerBlockGroups, cfg.PostGIS.BlockGroupsTable); err != nil {
		return err
	}
	if set.Layers.Income, err = layer(catchment.LayerIncome, cfg.PostGIS.IncomeTable); err != nil {
		return err
	}
	if set.Layers.Education, err = layer(catchment.LayerEducation, cfg.PostGIS.EducationTable); err != nil {
		return err
	}
	if cfg.PostGIS.StoresTable != "" {
		if set.Stores, err = layer(LayerStores, cfg.PostGIS.StoresTable); err != nil {
			return err
		}
	}
	return nil
}

func openShapefiles(ctx context.Context, cfg *config.Config, set *Set) error {
	paths := []struct {
		name string
		path string
		dst  *spatial.Querier
	}{
		{catchment.LayerBlockGroups, cfg.Shapefile.BlockGroups, &set.Layers.BlockGroups},
		{catchment.LayerIncome, cfg.Shapefile.Income, &set.Layers.Income},
		{catchment.LayerEducation, cfg.Shapefile.Education, &set.Layers.Education},
		{LayerStores, cfg.Shapefile.Stores, &set.Stores},
	}

	layers := make([]*shapefile.Layer, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		if p.path == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, err := shapefile.Open(p.name, p.path)
			if err != nil {
				return eris.Wrapf(err, "source: %s shapefile", p.name)
			}
			layers[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range paths {
		if layers[i] != nil {
			*p.dst = layers[i]
		}
	}
	return nil
}
