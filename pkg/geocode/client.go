// Package geocode resolves a one-line street address to a point with the
// Census Geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/catchment/internal/resilience"
)

const (
	defaultBaseURL   = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	defaultBenchmark = "Public_AR_Current"
)

// Client geocodes addresses.
type Client interface {
	// Geocode returns the best match for address. Result.Matched is false
	// when the address could not be matched; that is not an error.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Longitude      float64
	Latitude       float64
	MatchedAddress string
	Matched        bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL points the client at a different one-line address endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithBenchmark selects the Census address benchmark.
func WithBenchmark(b string) Option {
	return func(g *geocoder) {
		if b != "" {
			g.benchmark = b
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	benchmark  string
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		baseURL:    defaultBaseURL,
		benchmark:  defaultBenchmark,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type oneLineResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
	Errors []string `json:"errors"`
}

func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, eris.New("geocode: empty address")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address":   {address},
		"benchmark": {g.benchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: census returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var body oneLineResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(body.Errors) > 0 {
		return nil, eris.Errorf("geocode: %s", strings.Join(body.Errors, "; "))
	}
	if len(body.Result.AddressMatches) == 0 {
		return &Result{Matched: false}, nil
	}

	match := body.Result.AddressMatches[0]
	return &Result{
		Longitude:      match.Coordinates.X,
		Latitude:       match.Coordinates.Y,
		MatchedAddress: match.MatchedAddress,
		Matched:        true,
	}, nil
}
