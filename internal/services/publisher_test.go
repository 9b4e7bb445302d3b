package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func cleanedRoute() models.RouteDraft {
	lat, lng := 39.12345, -76.54321
	return models.RouteDraft{
		BusNumber:  "021",
		SchoolName: "Guilford Park",
		Period:     models.PeriodAM,
		Stops: []models.StopRecord{
			{Time: "6:42 AM", Location: "123 Main St", Latitude: &lat, Longitude: &lng},
			{Time: "6:50 AM", Location: "Behind the gym", GeocodeError: "NO_MATCH"},
		},
	}
}

func TestPublisher_WritesUnderBusFolder(t *testing.T) {
	store := newFakeStore()
	store.addFolder("", "dest", "Bus Stops")
	mirror := &fakeMirror{}
	p := NewPublisher(store, mirror, PublisherConfig{DestinationFolderID: "dest", Retry: fastRetry()})

	item := scannedItem()
	out, err := p.Publish(context.Background(), item, models.ExtractionGenerative, cleanedRoute())
	require.NoError(t, err)
	assert.Equal(t, "021", out.BusNumber)
	assert.Equal(t, "GUILFORD PARK (AM)", out.Name)

	content, ok := store.artifact("dest", "021", "GUILFORD PARK (AM).json")
	require.True(t, ok)
	assert.Equal(t, content, mirror.objects["021/GUILFORD PARK (AM).json"])

	var artifact models.RouteArtifact
	require.NoError(t, json.Unmarshal(content, &artifact))
	assert.Equal(t, "GUILFORD PARK", artifact.SchoolName)
	assert.Equal(t, models.PeriodAM, artifact.Period)
	assert.Equal(t, item.SourceName, artifact.Meta.SourceFileName)
	assert.Equal(t, item.Fingerprint(), artifact.Meta.SourceFingerprint)
	assert.Equal(t, models.RouteTypeSpecEdPdf, artifact.Meta.SourceType)
	assert.Equal(t, models.ExtractionGenerative, artifact.Meta.ExtractionMethod)
	assert.Equal(t, []float64{-76.54321, 39.12345, -76.54321, 39.12345}, artifact.Meta.Bounds)
	require.Len(t, artifact.Stops, 2)
	assert.NotNil(t, artifact.Stops[0].Students)
	assert.Equal(t, "NO_MATCH", artifact.Stops[1].GeocodeError)

	stops, err := models.ParseArtifactStops(content)
	require.NoError(t, err)
	assert.Len(t, stops, 2)
}

func TestPublisher_OverwriteIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addFolder("", "dest", "Bus Stops")
	p := NewPublisher(store, nil, PublisherConfig{DestinationFolderID: "dest", Retry: fastRetry()})

	read := func() models.RouteArtifact {
		content, ok := store.artifact("dest", "021", "GUILFORD PARK (AM).json")
		require.True(t, ok)
		var a models.RouteArtifact
		require.NoError(t, json.Unmarshal(content, &a))
		return a
	}

	p.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	_, err := p.Publish(context.Background(), scannedItem(), models.ExtractionGenerative, cleanedRoute())
	require.NoError(t, err)
	first := read()

	p.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	_, err = p.Publish(context.Background(), scannedItem(), models.ExtractionGenerative, cleanedRoute())
	require.NoError(t, err)
	second := read()

	assert.NotEqual(t, first.Meta.GeneratedAt, second.Meta.GeneratedAt)
	first.Meta.GeneratedAt, second.Meta.GeneratedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)

	a, _ := MarshalArtifact(first)
	b, _ := MarshalArtifact(second)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, store.writes)
	assert.Len(t, store.files, 3) // destination, bus folder, artifact
}

func TestPublisher_MissingDestinationIsConfigurationError(t *testing.T) {
	p := NewPublisher(newFakeStore(), nil, PublisherConfig{Retry: fastRetry()})
	_, err := p.Publish(context.Background(), scannedItem(), models.ExtractionGenerative, cleanedRoute())
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestPublisher_DeletedDestinationIsConfigurationError(t *testing.T) {
	store := newFakeStore()
	p := NewPublisher(store, nil, PublisherConfig{DestinationFolderID: "gone", Retry: fastRetry()})

	err := p.Preflight(context.Background())
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = p.Publish(context.Background(), scannedItem(), models.ExtractionGenerative, cleanedRoute())
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Zero(t, store.writes)

	store.addFolder("", "gone", "Bus Stops")
	assert.NoError(t, p.Preflight(context.Background()))
}

func TestStopBounds(t *testing.T) {
	a, b := 1.0, 2.0
	c, d := -3.0, 5.0
	stops := []models.StopRecord{
		{Latitude: &a, Longitude: &b},
		{Location: "ungeocoded"},
		{Latitude: &c, Longitude: &d},
	}
	assert.Equal(t, []float64{2, -3, 5, 1}, StopBounds(stops))
	assert.Nil(t, StopBounds([]models.StopRecord{{Location: "x"}}))
}
