package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/metrics"
	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
	"github.com/Lllllllleong/routeingest/internal/routes"
)

// NoMatchError is recorded on stops the geocoding service could not place.
const NoMatchError = "NO_MATCH"

// CacheConfig tunes the cache layer.
type CacheConfig struct {
	// RegionSuffix is appended to every location, e.g. ", MD".
	RegionSuffix string
	// CourtesyDelay is slept after every network lookup.
	CourtesyDelay time.Duration
	Retry         resilience.RetryConfig
}

// Cache resolves stop locations through the persisted geocode cache, falling
// back to the geocoding service on a miss.
type Cache struct {
	client Client
	config CacheConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewCache creates a Cache calling client on misses.
func NewCache(client Client, config CacheConfig) *Cache {
	return &Cache{client: client, config: config, sleep: sleepCtx}
}

// Session binds the cache to one run's state. Queries the service could not
// match are remembered for the session so they are not asked twice.
type Session struct {
	cache    *Cache
	state    *models.PipelineState
	noMatch  map[string]struct{}
	Lookups  int
	CacheHit int
	NoMatch  int
}

// Session starts a run-scoped resolver writing into state.GeocodeCache.
func (c *Cache) Session(state *models.PipelineState) *Session {
	return &Session{cache: c, state: state, noMatch: make(map[string]struct{})}
}

// Query builds the geocoding query for a location.
func (c *Cache) Query(location string) string {
	loc := routes.CollapseSpaces(location)
	if loc == "" {
		return ""
	}
	return loc + c.config.RegionSuffix
}

// Key is the cache key of a query.
func Key(query string) string {
	return strings.ToLower(routes.CollapseSpaces(query))
}

// Resolve fills in coordinates for every stop that lacks them. Stops the
// service cannot place get GeocodeError set and are kept. An error means the
// service kept failing after retries; stops resolved before it keep their
// coordinates and the cache keeps what it learned.
func (s *Session) Resolve(ctx context.Context, stops []models.StopRecord) error {
	for i := range stops {
		stop := &stops[i]
		if stop.HasCoordinates() {
			continue
		}
		query := s.cache.Query(stop.Location)
		if query == "" {
			stop.GeocodeError = NoMatchError
			continue
		}
		key := Key(query)

		if ll, ok := s.state.CachedCoordinates(key); ok {
			stop.SetCoordinates(ll)
			s.CacheHit++
			metrics.IncGeocode(metrics.GeocodeCacheHit)
			continue
		}
		if _, miss := s.noMatch[key]; miss {
			stop.GeocodeError = NoMatchError
			continue
		}

		ll, matched, err := s.lookup(ctx, query)
		if err != nil {
			metrics.IncGeocode(metrics.GeocodeError)
			return eris.Wrapf(err, "geocode %q", query)
		}
		if !matched {
			s.noMatch[key] = struct{}{}
			s.NoMatch++
			stop.GeocodeError = NoMatchError
			metrics.IncGeocode(metrics.GeocodeNoMatch)
			zap.L().Debug("geocode no match", zap.String("query", query))
			continue
		}
		s.state.CacheCoordinates(key, ll)
		stop.SetCoordinates(ll)
		metrics.IncGeocode(metrics.GeocodeResolved)
	}
	return nil
}

type lookupResult struct {
	ll      models.LatLng
	matched bool
}

func (s *Session) lookup(ctx context.Context, query string) (models.LatLng, bool, error) {
	s.Lookups++
	res, err := resilience.DoVal(ctx, s.cache.config.Retry.Named("geocode", "lookup"), func(ctx context.Context) (lookupResult, error) {
		ll, matched, err := s.cache.client.Geocode(ctx, query)
		return lookupResult{ll: ll, matched: matched}, err
	})
	if err != nil {
		return models.LatLng{}, false, err
	}
	if err := s.cache.sleep(ctx, s.cache.config.CourtesyDelay); err != nil {
		return models.LatLng{}, false, err
	}
	return res.ll, res.matched, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
