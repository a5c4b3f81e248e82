package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment/internal/resilience"
)

func TestGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC 20500", r.URL.Query().Get("address"))
		assert.Equal(t, "Public_AR_Current", r.URL.Query().Get("benchmark"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -77.0365, "y": 38.8977},
					"matchedAddress": "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500"
				}]
			}
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(1000))
	result, err := c.Geocode(context.Background(), " 1600 Pennsylvania Ave NW, Washington, DC 20500 ")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 38.8977, result.Latitude, 0.0001)
	assert.InDelta(t, -77.0365, result.Longitude, 0.0001)
	assert.Equal(t, "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500", result.MatchedAddress)
}

func TestGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	result, err := c.Geocode(context.Background(), "123 Nowhere St, Faketown, XX")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_ServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"errors": ["Address cannot be empty"]}`)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000)).Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Address cannot be empty")
}

func TestGeocode_Status(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))

	_, err := c.Geocode(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	status.Store(http.StatusBadRequest)
	_, err = c.Geocode(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestGeocode_EmptyAddress(t *testing.T) {
	_, err := NewClient().Geocode(context.Background(), "  ")
	assert.Error(t, err)
}

func TestGeocode_CanceledWhileLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(WithBaseURL("http://127.0.0.1:1")).Geocode(ctx, "1 Main St")
	assert.Error(t, err)
}
