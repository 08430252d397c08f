package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	mutationsTotal  *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	exportRows      *prometheus.HistogramVec
}

// NewMetrics initialises the registry with HTTP and record metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_records_mutations_total",
		Help: "Record mutations by table, action and outcome.",
	}, []string{"table", "action", "outcome"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_records_exports_total",
		Help: "CSV exports by table and outcome.",
	}, []string{"table", "outcome"})
	exportRows := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_records_export_rows",
		Help:    "Rows written per successful CSV export.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"table"})
	registry.MustRegister(
		requests, duration, mutations, exports, exportRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		mutationsTotal:  mutations,
		exportsTotal:    exports,
		exportRows:      exportRows,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordMutation counts one add, update or delete against a table.
func (m *Metrics) RecordMutation(table, action, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(table, action, outcome).Inc()
}

// RecordExport counts one CSV export. rows is ignored for failed exports.
func (m *Metrics) RecordExport(table string, rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.exportsTotal.WithLabelValues(table, "error").Inc()
		return
	}
	m.exportsTotal.WithLabelValues(table, "ok").Inc()
	m.exportRows.WithLabelValues(table).Observe(float64(rows))
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
