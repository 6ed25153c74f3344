package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "pricing"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	ImportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "import_runs_total", Help: "Pricing import runs by outcome."},
		[]string{"outcome"}, // ok|dry_run|validation|unreadable|forbidden|persistence|error
	)
	ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "import_rows_total", Help: "Price bands written by imports."},
		[]string{"action"}, // created|updated
	)
	ImportWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "import_warnings_total", Help: "Warnings reported by imports."},
	)
	ImportStage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "import_stage_duration_seconds",
			Help:    "Time spent per import stage.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // parse|reference|validate|reconcile
	)
)

// Serve exposes the registry on its own listener; an empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		ImportRuns, ImportRows, ImportWarnings, ImportStage)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveImport records one finished import run.
func ObserveImport(outcome string, created, updated, warnings int) {
	ImportRuns.WithLabelValues(outcome).Inc()
	if created > 0 {
		ImportRows.WithLabelValues("created").Add(float64(created))
	}
	if updated > 0 {
		ImportRows.WithLabelValues("updated").Add(float64(updated))
	}
	ImportWarnings.Add(float64(warnings))
}

// StageTimer starts timing an import stage; call the result when the stage ends.
func StageTimer(stage string) func() {
	start := time.Now()
	return func() { ImportStage.WithLabelValues(stage).Observe(time.Since(start).Seconds()) }
}
