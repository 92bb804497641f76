// Package metrics exposes Prometheus instruments for the query pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	pipelineLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryroute_pipeline_latency_ms",
		Help:    "End-to-end latency of a pipeline run in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
	})

	subqueries = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryroute_subqueries",
		Help:    "Number of sub-queries produced per query",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 12, 20},
	})

	routeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryroute_route_total",
		Help: "Sub-queries routed per strategy",
	}, []string{"strategy"})

	backendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queryroute_backend_latency_ms",
		Help:    "Latency of backend executions in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"strategy"})

	backendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryroute_backend_errors_total",
		Help: "Recovered backend failures by strategy and kind",
	}, []string{"strategy", "kind"})

	routerFallback = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryroute_router_fallback_total",
		Help: "Router fallbacks to the default strategy by reason",
	}, []string{"reason"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryroute_cache_lookups_total",
		Help: "Backend result cache lookups by outcome",
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(pipelineLatency, subqueries, routeTotal, backendLatency, backendErrors, routerFallback, cacheLookups)
	})
}

// ObservePipeline records a finished pipeline run.
func ObservePipeline(start time.Time, n int) {
	ensureRegistered()
	pipelineLatency.Observe(float64(time.Since(start).Milliseconds()))
	subqueries.Observe(float64(n))
}

// IncRoute counts one sub-query routed to strategy.
func IncRoute(strategy string) {
	ensureRegistered()
	routeTotal.WithLabelValues(strategy).Inc()
}

// ObserveBackend records one backend execution.
func ObserveBackend(strategy string, d time.Duration) {
	ensureRegistered()
	backendLatency.WithLabelValues(strategy).Observe(float64(d.Milliseconds()))
}

// IncBackendError counts a recovered backend failure. kind is "missing" or
// "execution".
func IncBackendError(strategy, kind string) {
	ensureRegistered()
	backendErrors.WithLabelValues(strategy, kind).Inc()
}

// IncRouterFallback counts a router fallback. reason is "transport",
// "unrecognized" or "panic".
func IncRouterFallback(reason string) {
	ensureRegistered()
	routerFallback.WithLabelValues(reason).Inc()
}

// IncCache counts a cache lookup. outcome is "hit", "miss" or "error".
func IncCache(outcome string) {
	ensureRegistered()
	cacheLookups.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}
