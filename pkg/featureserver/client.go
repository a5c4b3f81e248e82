// Package featureserver provides a client for the ArcGIS REST feature layer
// query endpoint.
package featureserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/catchment/internal/resilience"
)

// Spatial relationships and distance units understood by the query endpoint.
const (
	RelIntersects   = "esriSpatialRelIntersects"
	UnitStatuteMile = "esriSRUnit_StatuteMile"
	UnitMeter       = "esriSRUnit_Meter"
)

// DefaultObjectIDField orders paged queries so pages neither overlap nor
// skip records.
const DefaultObjectIDField = "OBJECTID"

// maxPages bounds pagination against a server that never clears
// exceededTransferLimit.
const maxPages = 500

// Client queries ArcGIS feature layers.
type Client interface {
	// Query runs one query against the layer at layerURL, following
	// pagination until the server stops reporting exceededTransferLimit.
	Query(ctx context.Context, layerURL string, p QueryParams) (*FeatureSet, error)
}

// QueryParams describes a layer query.
type QueryParams struct {
	// Where defaults to "1=1".
	Where string
	// Geometry filters by location. Nil queries the whole layer.
	Geometry *Geometry
	// GeometryType is required when Geometry is set.
	GeometryType string
	// SpatialRel defaults to RelIntersects.
	SpatialRel string
	// Distance buffers Geometry in Units. Zero means no buffer.
	Distance float64
	Units    string
	// OutFields defaults to "*".
	OutFields      []string
	ReturnGeometry bool
	ReturnCentroid bool
}

// Feature is one record of a query response.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
	Centroid   *Geometry      `json:"centroid,omitempty"`
}

// FeatureSet is a query response, merged across pages.
type FeatureSet struct {
	ObjectIDFieldName     string            `json:"objectIdFieldName"`
	GeometryType          string            `json:"geometryType"`
	SpatialReference      *SpatialReference `json:"spatialReference"`
	Features              []Feature         `json:"features"`
	ExceededTransferLimit bool              `json:"exceededTransferLimit"`
	Error                 *errorBody        `json:"error,omitempty"`
}

type errorBody struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// APIError is a failed query, either an HTTP error status or an error
// document returned with status 200.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("featureserver: query failed (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " [" + strings.Join(e.Details, "; ") + "]"
	}
	return msg
}

// Temporary reports whether the failure is worth retrying: rate limiting
// and server-side errors.
func (e *APIError) Temporary() bool {
	return resilience.IsTransientHTTPStatus(e.StatusCode) || resilience.IsTransientHTTPStatus(e.Code)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

// WithToken sets an ArcGIS access token sent with every query.
func WithToken(token string) Option {
	return func(c *client) {
		c.token = token
	}
}

// WithRateLimit sets the requests-per-second limit across all layers.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObjectIDField sets the field paged queries are ordered by.
func WithObjectIDField(name string) Option {
	return func(c *client) {
		if name != "" {
			c.objectIDField = name
		}
	}
}

// WithPageSize sets resultRecordCount. Zero leaves paging to the server.
func WithPageSize(n int) Option {
	return func(c *client) {
		c.pageSize = n
	}
}

type client struct {
	http          *http.Client
	token         string
	limiter       *rate.Limiter
	pageSize      int
	objectIDField string
}

// NewClient creates a feature layer client.
func NewClient(opts ...Option) Client {
	c := &client{
		http:          &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(10, 10),
		pageSize:      2000,
		objectIDField: DefaultObjectIDField,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Query(ctx context.Context, layerURL string, p QueryParams) (*FeatureSet, error) {
	form, err := c.form(p)
	if err != nil {
		return nil, err
	}

	var merged *FeatureSet
	offset := 0
	for page := 0; page < maxPages; page++ {
		if c.pageSize > 0 {
			form.Set("orderByFields", c.objectIDField)
			form.Set("resultOffset", strconv.Itoa(offset))
			form.Set("resultRecordCount", strconv.Itoa(c.pageSize))
		}
		fs, err := c.queryPage(ctx, layerURL, form)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = fs
		} else {
			merged.Features = append(merged.Features, fs.Features...)
		}
		if !fs.ExceededTransferLimit || len(fs.Features) == 0 {
			merged.ExceededTransferLimit = false
			return merged, nil
		}
		offset += len(fs.Features)
	}
	return nil, eris.Errorf("featureserver: %s still paging after %d pages", layerURL, maxPages)
}

func (c *client) form(p QueryParams) (url.Values, error) {
	where := p.Where
	if where == "" {
		where = "1=1"
	}
	fields := "*"
	if len(p.OutFields) > 0 {
		fields = strings.Join(p.OutFields, ",")
	}

	v := url.Values{
		"f":              {"json"},
		"where":          {where},
		"outFields":      {fields},
		"returnGeometry": {strconv.FormatBool(p.ReturnGeometry)},
		"outSR":          {"4326"},
	}
	if p.ReturnCentroid {
		v.Set("returnCentroid", "true")
	}
	if c.token != "" {
		v.Set("token", c.token)
	}

	if p.Geometry != nil {
		if p.GeometryType == "" {
			return nil, eris.New("featureserver: geometry type is required with a geometry")
		}
		raw, err := json.Marshal(p.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "featureserver: encode geometry")
		}
		rel := p.SpatialRel
		if rel == "" {
			rel = RelIntersects
		}
		v.Set("geometry", string(raw))
		v.Set("geometryType", p.GeometryType)
		v.Set("inSR", "4326")
		v.Set("spatialRel", rel)
		if p.Distance > 0 {
			units := p.Units
			if units == "" {
				units = UnitMeter
			}
			v.Set("distance", strconv.FormatFloat(p.Distance, 'f', -1, 64))
			v.Set("units", units)
		}
	}
	return v, nil
}

func (c *client) queryPage(ctx context.Context, layerURL string, form url.Values) (*FeatureSet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "featureserver: rate limit")
	}

	endpoint := strings.TrimRight(layerURL, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "featureserver: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "featureserver: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "featureserver: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: snippet(body)}
	}

	var fs FeatureSet
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fs); err != nil {
		return nil, eris.Wrap(err, "featureserver: parse response")
	}
	if fs.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       fs.Error.Code,
			Message:    fs.Error.Message,
			Details:    fs.Error.Details,
		}
	}
	return &fs, nil
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
