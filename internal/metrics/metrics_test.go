package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(itemsTotal.WithLabelValues(ItemPublished))
	IncItem(ItemPublished)
	IncItem(ItemPublished)
	assert.Equal(t, before+2, testutil.ToFloat64(itemsTotal.WithLabelValues(ItemPublished)))

	before = testutil.ToFloat64(geocodeLookupsTotal.WithLabelValues(GeocodeCacheHit))
	IncGeocode(GeocodeCacheHit)
	assert.Equal(t, before+1, testutil.ToFloat64(geocodeLookupsTotal.WithLabelValues(GeocodeCacheHit)))

	before = testutil.ToFloat64(runsTotal.WithLabelValues(RunCompleted))
	IncRun(RunCompleted)
	assert.Equal(t, before+1, testutil.ToFloat64(runsTotal.WithLabelValues(RunCompleted)))
}
