// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Upstream API metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamRateLimitHits   *prometheus.CounterVec

	// Sync metrics
	SyncJobsTotal       *prometheus.CounterVec
	SyncJobDuration     *prometheus.HistogramVec
	SyncRecordsUpserted *prometheus.CounterVec
	SyncWatermarkAge    *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseConnectionsOpen prometheus.Gauge
	DatabaseConnectionsIdle prometheus.Gauge

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

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total number of requests made to the upstream marketing API",
			},
			[]string{"service", "endpoint", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Upstream marketing API request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
			},
			[]string{"service", "endpoint"},
		),
		UpstreamRateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_rate_limit_hits_total",
				Help: "Total number of 429 responses received from the upstream API",
			},
			[]string{"service", "endpoint"},
		),

		SyncJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_jobs_total",
				Help: "Total number of sync jobs run, by entity type and outcome",
			},
			[]string{"service", "entity_type", "status"},
		),
		SyncJobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_job_duration_seconds",
				Help:    "Sync job duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"service", "entity_type"},
		),
		SyncRecordsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_records_upserted_total",
				Help: "Total number of records upserted by sync jobs",
			},
			[]string{"service", "entity_type"},
		),
		SyncWatermarkAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sync_watermark_age_seconds",
				Help: "Age of the last successful sync watermark per entity type",
			},
			[]string{"service", "entity_type"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"service", "route"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"service", "route"},
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
		DatabaseConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "database_connections_idle",
				Help: "Current number of idle database connections",
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
			m.UpstreamRequestsTotal,
			m.UpstreamRequestDuration,
			m.UpstreamRateLimitHits,
			m.SyncJobsTotal,
			m.SyncJobDuration,
			m.SyncRecordsUpserted,
			m.SyncWatermarkAge,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
			m.DatabaseConnectionsOpen,
			m.DatabaseConnectionsIdle,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

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

// RecordUpstreamRequest records a call to the upstream marketing API.
func (m *Metrics) RecordUpstreamRequest(service, endpoint, status string, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordUpstreamRateLimitHit records a 429 response from upstream.
func (m *Metrics) RecordUpstreamRateLimitHit(service, endpoint string) {
	m.UpstreamRateLimitHits.WithLabelValues(service, endpoint).Inc()
}

// RecordSyncJob records the outcome of a sync job.
func (m *Metrics) RecordSyncJob(service, entityType, status string, duration time.Duration, recordsUpserted int) {
	m.SyncJobsTotal.WithLabelValues(service, entityType, status).Inc()
	m.SyncJobDuration.WithLabelValues(service, entityType).Observe(duration.Seconds())
	m.SyncRecordsUpserted.WithLabelValues(service, entityType).Add(float64(recordsUpserted))
}

// SetSyncWatermarkAge sets the age in seconds of the last successful sync
// watermark for an entity type.
func (m *Metrics) SetSyncWatermarkAge(service, entityType string, age time.Duration) {
	m.SyncWatermarkAge.WithLabelValues(service, entityType).Set(age.Seconds())
}

// RecordCacheHit records a read-through cache hit.
func (m *Metrics) RecordCacheHit(service, route string) {
	m.CacheHitsTotal.WithLabelValues(service, route).Inc()
}

// RecordCacheMiss records a read-through cache miss.
func (m *Metrics) RecordCacheMiss(service, route string) {
	m.CacheMissesTotal.WithLabelValues(service, route).Inc()
}

// RecordDatabaseQuery records a database query.
func (m *Metrics) RecordDatabaseQuery(service, operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetDatabaseConnections sets the number of open and idle database connections.
func (m *Metrics) SetDatabaseConnections(open, idle int) {
	m.DatabaseConnectionsOpen.Set(float64(open))
	m.DatabaseConnectionsIdle.Set(float64(idle))
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

// Helper functions

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
//   - production: disabled unless explicitly enabled via METRICS_ENABLED
//   - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return environment() != "production"
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
