// Package metrics exposes Prometheus instruments for the recommendation
// pipeline. All collectors register with the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts resolved requests by outcome: "ok", "cached" or
	// an error code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upnext",
			Name:      "requests_total",
			Help:      "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	// ExtractionsTotal counts extraction runs by the tier that produced items.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upnext",
			Name:      "extractions_total",
			Help:      "Total number of extraction runs by winning tier",
		},
		[]string{"tier"},
	)

	// ItemsReturned tracks how many items one extraction produced.
	ItemsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "upnext",
			Name:      "items_returned",
			Help:      "Number of items produced per extraction",
			Buckets:   []float64{0, 1, 3, 6, 9, 12},
		},
	)

	// UpstreamDuration tracks how long an engine took to produce a snapshot.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "upnext",
			Name:      "upstream_duration_seconds",
			Help:      "Duration of page source fetches in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 45},
		},
		[]string{"engine", "result"},
	)

	// CoalescedTotal counts requests that shared another request's upstream
	// fetch.
	CoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upnext",
			Name:      "coalesced_requests_total",
			Help:      "Total number of requests served by an in-flight fetch for the same video",
		},
	)
)

// RecordRequest counts one request outcome.
func RecordRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordExtraction records the winning tier and item count of one run.
func RecordExtraction(tier string, items int) {
	ExtractionsTotal.WithLabelValues(tier).Inc()
	ItemsReturned.Observe(float64(items))
}

// RecordUpstream records one engine fetch.
func RecordUpstream(engine string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamDuration.WithLabelValues(engine, result).Observe(d.Seconds())
}

// RecordCoalesced counts one request that joined an in-flight fetch.
func RecordCoalesced() {
	CoalescedTotal.Inc()
}
