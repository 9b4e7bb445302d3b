// Package metrics holds the pipeline's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "routeingest"

	outcomeLabel = "outcome"
	resultLabel  = "result"
)

// Item outcomes.
const (
	ItemPublished = "published"
	ItemSkipped   = "skipped"
	ItemWarning   = "warning"
	ItemFailed    = "failed"
)

// Geocode lookup results.
const (
	GeocodeCacheHit = "cache_hit"
	GeocodeResolved = "resolved"
	GeocodeNoMatch  = "no_match"
	GeocodeError    = "error"
)

// Run outcomes.
const (
	RunContended = "contended"
	RunContinued = "continued"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

var itemsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_total",
		Help:      "work items handled, by outcome",
	},
	[]string{outcomeLabel},
)

var geocodeLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_lookups_total",
		Help:      "stop geocode resolutions, by result",
	},
	[]string{resultLabel},
)

var runsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "coordinator runs, by outcome",
	},
	[]string{outcomeLabel},
)

func IncItem(outcome string) {
	itemsTotal.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncGeocode(result string) {
	geocodeLookupsTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

func IncRun(outcome string) {
	runsTotal.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	prometheus.MustRegister(itemsTotal)
	prometheus.MustRegister(geocodeLookupsTotal)
	prometheus.MustRegister(runsTotal)
}
