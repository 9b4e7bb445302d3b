// Package geocode resolves stop locations to coordinates through the Google
// Geocoding API, memoised in the pipeline state.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client geocodes one free-form query. matched is false when the service has
// no result for it.
type Client interface {
	Geocode(ctx context.Context, query string) (ll models.LatLng, matched bool, err error)
}

// Option configures the Google client.
type Option func(*googleClient)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *googleClient) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(g *googleClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRegion biases results towards a ccTLD region code such as "us".
func WithRegion(region string) Option {
	return func(g *googleClient) {
		g.region = region
	}
}

type googleClient struct {
	httpClient *http.Client
	apiKey     string
	region     string
	limiter    *rate.Limiter
}

// NewGoogleClient creates a Client backed by the Google Geocoding API.
func NewGoogleClient(apiKey string, opts ...Option) Client {
	g := &googleClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type googleGeocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Geocode implements Client. HTTP 429 and 5xx responses, OVER_QUERY_LIMIT and
// UNKNOWN_ERROR come back as resilience.TransientError.
func (g *googleClient) Geocode(ctx context.Context, query string) (models.LatLng, bool, error) {
	if g.apiKey == "" {
		return models.LatLng{}, false, eris.New("geocode: google api key not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return models.LatLng{}, false, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address": {query},
		"key":     {g.apiKey},
	}
	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.LatLng{}, false, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.LatLng{}, false, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return models.LatLng{}, false, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return models.LatLng{}, false, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.LatLng{}, false, eris.Wrap(err, "geocode: read body")
	}

	var parsed googleGeocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.LatLng{}, false, eris.Wrap(err, "geocode: parse response")
	}

	switch parsed.Status {
	case "OK":
		if len(parsed.Results) == 0 {
			return models.LatLng{}, false, nil
		}
		loc := parsed.Results[0].Geometry.Location
		return models.LatLng{Lat: loc.Lat, Lng: loc.Lng}, true, nil
	case "ZERO_RESULTS":
		return models.LatLng{}, false, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return models.LatLng{}, false, resilience.NewTransientError(
			eris.Errorf("geocode: google status %s", parsed.Status), http.StatusTooManyRequests)
	default:
		return models.LatLng{}, false, eris.Errorf("geocode: google status %s: %s", parsed.Status, parsed.ErrorMessage)
	}
}
