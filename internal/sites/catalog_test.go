package sites

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment/internal/spatial"
)

func storeFeature(no any, state string, lng, lat float64) spatial.Feature {
	return spatial.Feature{
		Geometry:   spatial.NewPoint(lng, lat),
		Attributes: spatial.Attributes{FieldStoreNo: no, FieldState: state},
	}
}

func storeLayer(calls *atomic.Int32, features ...spatial.Feature) spatial.Querier {
	return spatial.QuerierFunc(func(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
		calls.Add(1)
		return features, nil
	})
}

func numbers(stores []Store) []string {
	out := make([]string, len(stores))
	for i, s := range stores {
		out[i] = s.StoreNo
	}
	return out
}

func TestCatalog_LoadListFind(t *testing.T) {
	var calls atomic.Int32
	c := NewCatalog(storeLayer(&calls,
		storeFeature(120.0, "CA", -118.3, 34.1),
		storeFeature("9", "NY", -73.9, 40.7),
		storeFeature("31", "CA", -122.4, 37.8),
		storeFeature("", "TX", -97.7, 30.2),
		spatial.Feature{Attributes: spatial.Attributes{FieldStoreNo: "77", FieldState: "TX"}},
	))

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, []string{"CA", "NY"}, c.States())
	assert.Equal(t, []string{"9", "31", "120"}, numbers(c.List("")))
	assert.Equal(t, []string{"31", "120"}, numbers(c.List("ca")))
	assert.Empty(t, c.List("TX"))

	s, err := c.Find(" 31 ")
	require.NoError(t, err)
	assert.Equal(t, "CA", s.State)
	assert.InDelta(t, -122.4, s.Location.Lng, 1e-9)
	assert.InDelta(t, 37.8, s.Location.Lat, 1e-9)

	_, err = c.Find("404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_QueryAsksForStoreFields(t *testing.T) {
	var got spatial.Query
	c := NewCatalog(spatial.QuerierFunc(func(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
		got = q
		return nil, nil
	}))
	require.NoError(t, c.Load(context.Background()))
	assert.Nil(t, got.Geometry)
	assert.Equal(t, []string{FieldStoreNo, FieldState}, got.OutFields)
	assert.NoError(t, got.Validate())
}

func TestCatalog_LoadErrorAllowsRetry(t *testing.T) {
	var calls atomic.Int32
	c := NewCatalog(spatial.QuerierFunc(func(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("service unavailable")
		}
		return []spatial.Feature{storeFeature("1", "AZ", -112, 33.4)}, nil
	}))

	require.Error(t, c.Load(context.Background()))
	assert.Empty(t, c.List(""))

	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.List(""), 1)
}

func TestCatalog_ConcurrentLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCatalog(spatial.QuerierFunc(func(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
		calls.Add(1)
		<-release
		return []spatial.Feature{storeFeature("1", "AZ", -112, 33.4)}, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Load(context.Background()))
		}()
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(4))
	assert.Len(t, c.List(""), 1)
}

func TestCatalog_CanceledCallerDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	queryErr := make(chan error, 1)
	c := NewCatalog(spatial.QuerierFunc(func(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
		calls.Add(1)
		close(started)
		<-release
		queryErr <- ctx.Err()
		return []spatial.Feature{storeFeature("1", "AZ", -112, 33.4)}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.Load(ctx) }()
	<-started

	second := make(chan error, 1)
	go func() { second <- c.Load(context.Background()) }()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.NoError(t, <-queryErr, "shared query must not see the caller's cancellation")
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, c.List(""), 1)
}

func TestCatalog_NoLayer(t *testing.T) {
	assert.Error(t, NewCatalog(nil).Load(context.Background()))
}

func TestNewStaticCatalog(t *testing.T) {
	c := NewStaticCatalog([]Store{{StoreNo: "B"}, {StoreNo: "10"}, {StoreNo: "2"}, {StoreNo: "A"}})
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []string{"2", "10", "A", "B"}, numbers(c.List("")))
}
