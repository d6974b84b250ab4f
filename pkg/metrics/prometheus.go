// Package metrics provides Prometheus metrics for the profile card service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Profile cards
	profileRenders      *prometheus.CounterVec
	profileRenderErrors *prometheus.CounterVec
	userCacheHits       prometheus.Counter
	userCacheMisses     prometheus.Counter
	upstreamErrors      *prometheus.CounterVec

	// Data explorer query jobs
	jobsSubmitted *prometheus.CounterVec
	jobsFromCache *prometheus.CounterVec
	jobPolls      *prometheus.CounterVec
	jobFailures   *prometheus.CounterVec
	jobsCancelled *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec

	// League computations
	leagueComputations *prometheus.CounterVec
	leagueRunning      prometheus.Gauge
	leagueQueueSize    prometheus.Gauge
	leagueQueueCap     prometheus.Gauge
	leagueEnqueueFails *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "soprofile",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.profileRenders = m.counterVec("profile_renders_total",
		"Total number of profile cards rendered", "template", "theme")
	m.profileRenderErrors = m.counterVec("profile_render_errors_total",
		"Total number of error cards served instead of a profile", "reason")
	m.userCacheHits = m.counter("user_cache_hits_total",
		"Profile requests served from the local user cache")
	m.userCacheMisses = m.counter("user_cache_misses_total",
		"Profile requests that needed a Stack Exchange fetch")
	m.upstreamErrors = m.counterVec("upstream_errors_total",
		"Errors returned by upstream services", "service")

	m.jobsSubmitted = m.counterVec("query_jobs_submitted_total",
		"Data explorer query jobs submitted", "query")
	m.jobsFromCache = m.counterVec("query_jobs_from_cache_total",
		"Data explorer submissions answered from the remote cache", "query")
	m.jobPolls = m.counterVec("query_job_polls_total",
		"Status polls issued for data explorer jobs", "query")
	m.jobFailures = m.counterVec("query_job_failures_total",
		"Data explorer job failures by stage (submit, poll, decode)", "query", "stage")
	m.jobsCancelled = m.counterVec("query_jobs_cancelled_total",
		"Data explorer jobs abandoned before completion", "query")
	m.jobDuration = m.histogramVec("query_job_duration_milliseconds",
		"Time from submission to completion of data explorer jobs", "query")

	m.leagueComputations = m.counterVec("league_computations_total",
		"League computations by outcome", "status")
	m.leagueRunning = m.gauge("league_running",
		"League computations currently running")
	m.leagueQueueSize = m.gauge("league_queue_size",
		"League requests waiting in the queue")
	m.leagueQueueCap = m.gauge("league_queue_capacity",
		"Maximum number of queued league requests")
	m.leagueEnqueueFails = m.counterVec("league_enqueue_errors_total",
		"League requests rejected by the queue", "reason")
	m.workerCount = m.gauge("league_worker_count",
		"Number of league workers")
	m.workerLatency = m.histogram("league_worker_latency_milliseconds",
		"Time spent by a worker on one league request", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total",
		"HTTP responses with an error status by type", "endpoint", "method", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordProfileRender counts a rendered profile card.
func RecordProfileRender(template, theme string) {
	globalManager.profileRenders.WithLabelValues(template, theme).Inc()
}

// RecordProfileRenderError counts an error card.
func RecordProfileRenderError(reason string) {
	globalManager.profileRenderErrors.WithLabelValues(reason).Inc()
}

// RecordUserCacheHit counts a profile served from the store.
func RecordUserCacheHit() {
	globalManager.userCacheHits.Inc()
}

// RecordUserCacheMiss counts a profile that required an upstream fetch.
func RecordUserCacheMiss() {
	globalManager.userCacheMisses.Inc()
}

// RecordUpstreamError counts an upstream failure for service.
func RecordUpstreamError(service string) {
	globalManager.upstreamErrors.WithLabelValues(service).Inc()
}

// RecordJobSubmitted counts a data explorer submission.
func RecordJobSubmitted(query string) {
	globalManager.jobsSubmitted.WithLabelValues(query).Inc()
}

// RecordJobFromCache counts a submission answered inline.
func RecordJobFromCache(query string) {
	globalManager.jobsFromCache.WithLabelValues(query).Inc()
}

// RecordJobPoll counts one status poll.
func RecordJobPoll(query string) {
	globalManager.jobPolls.WithLabelValues(query).Inc()
}

// RecordJobFailure counts a job failure at stage.
func RecordJobFailure(query, stage string) {
	globalManager.jobFailures.WithLabelValues(query, stage).Inc()
}

// RecordJobCancelled counts an abandoned job.
func RecordJobCancelled(query string) {
	globalManager.jobsCancelled.WithLabelValues(query).Inc()
}

// RecordJobDuration observes a completed job's wall time.
func RecordJobDuration(query string, durationMs float64) {
	globalManager.jobDuration.WithLabelValues(query).Observe(durationMs)
}

// RecordLeagueComputation counts a league computation outcome.
func RecordLeagueComputation(status string) {
	globalManager.leagueComputations.WithLabelValues(status).Inc()
}

// UpdateLeagueRunning sets the number of running computations.
func UpdateLeagueRunning(count int) {
	globalManager.leagueRunning.Set(float64(count))
}

// UpdateQueueSize sets the number of queued league requests.
func UpdateQueueSize(size int) {
	globalManager.leagueQueueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the league queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.leagueQueueCap.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected league request.
func RecordQueueEnqueueError(reason string) {
	globalManager.leagueEnqueueFails.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the league worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes time spent on one league request.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
