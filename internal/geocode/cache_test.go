package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
)

func testCache(client Client) (*Cache, *[]time.Duration) {
	var slept []time.Duration
	c := NewCache(client, CacheConfig{
		RegionSuffix:  ", MD",
		CourtesyDelay: 200 * time.Millisecond,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		},
	})
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestSession_MissThenHit(t *testing.T) {
	client := &fakeClient{results: map[string]models.LatLng{
		"123 Main St, MD": {Lat: 39.12345, Lng: -76.54321},
	}}
	cache, slept := testCache(client)
	state := models.NewPipelineState()

	stops := []models.StopRecord{{Location: "123 Main St"}, {Location: "123  MAIN st"}}
	s := cache.Session(state)
	require.NoError(t, s.Resolve(context.Background(), stops))

	assert.Len(t, client.calls, 1)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, *slept)
	for _, stop := range stops {
		require.True(t, stop.HasCoordinates())
		assert.InDelta(t, 39.12345, *stop.Latitude, 1e-9)
		assert.InDelta(t, -76.54321, *stop.Longitude, 1e-9)
	}
	assert.Equal(t, models.LatLng{Lat: 39.12345, Lng: -76.54321}, state.GeocodeCache["123 main st, md"])
	assert.Equal(t, 1, s.Lookups)
	assert.Equal(t, 1, s.CacheHit)
}

func TestSession_CacheHitMakesNoCall(t *testing.T) {
	client := &fakeClient{}
	cache, _ := testCache(client)
	state := models.NewPipelineState()
	state.CacheCoordinates("9 oak ln, md", models.LatLng{Lat: 1, Lng: 2})

	stops := []models.StopRecord{{Location: "9 Oak Ln"}}
	require.NoError(t, cache.Session(state).Resolve(context.Background(), stops))

	assert.Empty(t, client.calls)
	assert.True(t, stops[0].HasCoordinates())
}

func TestSession_NoMatchFlaggedAndNotRepeated(t *testing.T) {
	client := &fakeClient{}
	cache, _ := testCache(client)
	state := models.NewPipelineState()

	stops := []models.StopRecord{{Location: "Behind the gym"}, {Location: "behind the gym"}}
	require.NoError(t, cache.Session(state).Resolve(context.Background(), stops))

	assert.Len(t, client.calls, 1)
	for _, stop := range stops {
		assert.False(t, stop.HasCoordinates())
		assert.Equal(t, NoMatchError, stop.GeocodeError)
	}
	assert.Empty(t, state.GeocodeCache)
}

func TestSession_SkipsStopsWithCoordinates(t *testing.T) {
	client := &fakeClient{}
	cache, _ := testCache(client)
	lat, lng := 1.0, 2.0
	stops := []models.StopRecord{{Location: "1 A St", Latitude: &lat, Longitude: &lng}}

	require.NoError(t, cache.Session(models.NewPipelineState()).Resolve(context.Background(), stops))
	assert.Empty(t, client.calls)
}

func TestSession_TransientErrorRetried(t *testing.T) {
	client := &fakeClient{
		results: map[string]models.LatLng{"5 Elm Ct, MD": {Lat: 3, Lng: 4}},
		errs:    []error{resilience.NewTransientError(errors.New("503"), 503)},
	}
	cache, _ := testCache(client)
	stops := []models.StopRecord{{Location: "5 Elm Ct"}}

	require.NoError(t, cache.Session(models.NewPipelineState()).Resolve(context.Background(), stops))
	assert.Len(t, client.calls, 2)
	assert.True(t, stops[0].HasCoordinates())
}

func TestSession_PermanentErrorFailsAndKeepsCache(t *testing.T) {
	client := &fakeClient{
		results: map[string]models.LatLng{"1 First St, MD": {Lat: 5, Lng: 6}},
		errs:    []error{nil, errors.New("denied")},
	}
	cache, _ := testCache(client)
	state := models.NewPipelineState()
	stops := []models.StopRecord{{Location: "1 First St"}, {Location: "2 Second St"}}

	err := cache.Session(state).Resolve(context.Background(), stops)
	require.Error(t, err)
	assert.Len(t, state.GeocodeCache, 1)
	assert.True(t, stops[0].HasCoordinates())
}

func TestQueryAndKey(t *testing.T) {
	cache, _ := testCache(&fakeClient{})
	assert.Equal(t, "123 Main St, MD", cache.Query("  123   Main St "))
	assert.Equal(t, "", cache.Query("   "))
	assert.Equal(t, "123 main st, md", Key("123  Main St, MD"))
}
