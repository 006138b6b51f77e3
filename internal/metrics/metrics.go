// Package metrics registers the prometheus collectors for upstream calls,
// caching and cell emissions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total upstream GET requests issued",
	}, []string{"endpoint"})

	UpstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "upstream",
		Name:      "failures_total",
		Help:      "Total upstream requests that failed in transport, status or decoding",
	}, []string{"endpoint"})

	UpstreamDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoserve",
		Subsystem: "upstream",
		Name:      "duration_ms",
		Help:      "Upstream request duration in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"endpoint"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total upstream responses served from cache",
	}, []string{"endpoint"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache lookups that went upstream",
	}, []string{"endpoint"})

	CellEmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "cell",
		Name:      "emissions_total",
		Help:      "Total values emitted into broadcast cells",
	}, []string{"cell"})

	OverlayFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoserve",
		Subsystem: "overlay",
		Name:      "fetches_total",
		Help:      "Overlay geometry fetches by outcome",
	}, []string{"type", "outcome"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
