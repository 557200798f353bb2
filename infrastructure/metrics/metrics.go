// Package metrics provides Prometheus metrics collection for the
// trackfusion worker: HTTP, database, and the domain counters each pipeline
// stage (coalescer, search, judgement, GC) reports.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/twmsh/trackfusion/internal/runtime"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Pipeline metrics (spec.md §4.B/§4.E/§4.F/§4.I)
	TracksIngestedTotal  *prometheus.CounterVec // kind
	TracksPublishedTotal *prometheus.CounterVec // kind
	TracksInvalidTotal   *prometheus.CounterVec // kind
	SearchBatchDuration  prometheus.Histogram
	JudgementsTotal      *prometheus.CounterVec // kind, alarmed
	GCReclaimedTotal     *prometheus.CounterVec // kind

	// Database metrics
	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseConnectionsOpen prometheus.Gauge

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		TracksIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracks_ingested_total",
				Help: "Total number of track notification batches folded by the coalescer",
			},
			[]string{"kind"},
		),
		TracksPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracks_published_total",
				Help: "Total number of tracks published to judgement on their readiness transition",
			},
			[]string{"kind"},
		),
		TracksInvalidTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracks_invalid_total",
				Help: "Total number of tracks marked invalid on a persistence failure",
			},
			[]string{"kind"},
		),
		SearchBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "face_search_batch_duration_seconds",
				Help:    "Duration of a single batched 1:N face search call",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		JudgementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgements_total",
				Help: "Total number of judged snapshots, partitioned by alarm outcome",
			},
			[]string{"kind", "alarmed"},
		),
		GCReclaimedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gc_reclaimed_tracks_total",
				Help: "Total number of tracks reclaimed by the disk-pressure GC",
			},
			[]string{"kind"},
		),

		DatabaseQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"service", "operation", "status"},
		),
		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"service", "operation"},
		),
		DatabaseConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "database_connections_open",
				Help: "Current number of open database connections",
			},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.TracksIngestedTotal,
			m.TracksPublishedTotal,
			m.TracksInvalidTotal,
			m.SearchBatchDuration,
			m.JudgementsTotal,
			m.GCReclaimedTotal,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
			m.DatabaseConnectionsOpen,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordTrackIngested records one accepted track notification for kind
// ("facetrack"/"vehicletrack", the /trackupload wire type).
func (m *Metrics) RecordTrackIngested(kind string) {
	m.TracksIngestedTotal.WithLabelValues(kind).Inc()
}

// RecordTrackPublished records one readiness-transition publication.
func (m *Metrics) RecordTrackPublished(kind string) {
	m.TracksPublishedTotal.WithLabelValues(kind).Inc()
}

// RecordTrackInvalid records one sticky-invalid persistence failure.
func (m *Metrics) RecordTrackInvalid(kind string) {
	m.TracksInvalidTotal.WithLabelValues(kind).Inc()
}

// RecordSearchBatch records one batched face search call's duration.
func (m *Metrics) RecordSearchBatch(duration time.Duration) {
	m.SearchBatchDuration.Observe(duration.Seconds())
}

// RecordJudgement records one judged snapshot's alarm outcome.
func (m *Metrics) RecordJudgement(kind string, alarmed bool) {
	m.JudgementsTotal.WithLabelValues(kind, strconv(alarmed)).Inc()
}

// RecordGCReclaimed records n tracks of kind reclaimed by one GC tick.
func (m *Metrics) RecordGCReclaimed(kind string, n int) {
	if n <= 0 {
		return
	}
	m.GCReclaimedTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordDatabaseQuery records a database query.
func (m *Metrics) RecordDatabaseQuery(service, operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetDatabaseConnections sets the number of open database connections.
func (m *Metrics) SetDatabaseConnections(count int) {
	m.DatabaseConnectionsOpen.Set(float64(count))
}

// UpdateUptime updates the service uptime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests counter.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

func strconv(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
