// Package metrics provides Prometheus metrics for the elove rating service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the rating service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core business metrics
	ratingsRecorded   *prometheus.CounterVec
	ratingLatency     prometheus.Histogram
	scoreDelta        prometheus.Histogram
	matchesCreated    prometheus.Counter
	matchesExisting   prometheus.Counter
	versionConflicts  *prometheus.CounterVec
	duplicateRequests prometheus.Counter
	participantsTotal prometheus.Gauge

	// Store metrics
	storeLatency *prometheus.HistogramVec

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "elove",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.enabled {
		m.initializeMetrics()
	}

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ratingsRecorded = auto.NewCounterVec(
		m.counterOpts("ratings_recorded_total", "Total number of ratings recorded by polarity"),
		[]string{"polarity"},
	)
	m.ratingLatency = auto.NewHistogram(
		m.histogramOpts("rating_latency_milliseconds", "End-to-end latency of recording a rating in milliseconds", m.histogramBuckets),
	)
	m.scoreDelta = auto.NewHistogram(
		m.histogramOpts("score_delta_points", "Absolute score change applied to a participant per rating",
			[]float64{0.5, 1, 2, 4, 8, 16, 24, 32}),
	)
	m.matchesCreated = auto.NewCounter(
		m.counterOpts("matches_created_total", "Total number of mutual matches created"),
	)
	m.matchesExisting = auto.NewCounter(
		m.counterOpts("matches_existing_total", "Mutual positives that found an existing match"),
	)
	m.versionConflicts = auto.NewCounterVec(
		m.counterOpts("version_conflicts_total", "Optimistic concurrency conflicts by resource"),
		[]string{"resource"},
	)
	m.duplicateRequests = auto.NewCounter(
		m.counterOpts("duplicate_requests_total", "Requests rejected by idempotency-key deduplication"),
	)
	m.participantsTotal = auto.NewGauge(
		m.gaugeOpts("participants_total", "Number of registered participants"),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Enabled reports whether the manager records anything.
func (m *Manager) Enabled() bool { return m != nil && m.enabled }

// RecordRating counts a recorded rating and observes its latency.
func (m *Manager) RecordRating(positive bool, latencyMs float64) {
	if !m.Enabled() {
		return
	}
	polarity := "negative"
	if positive {
		polarity = "positive"
	}
	m.ratingsRecorded.WithLabelValues(polarity).Inc()
	m.ratingLatency.Observe(latencyMs)
}

// RecordScoreDelta observes the magnitude of a score change.
func (m *Manager) RecordScoreDelta(delta float64) {
	if !m.Enabled() {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.scoreDelta.Observe(delta)
}

// RecordMatch counts a mutual positive, split by whether it created the match.
func (m *Manager) RecordMatch(created bool) {
	if !m.Enabled() {
		return
	}
	if created {
		m.matchesCreated.Inc()
		return
	}
	m.matchesExisting.Inc()
}

// RecordVersionConflict counts an optimistic concurrency conflict.
func (m *Manager) RecordVersionConflict(resource string) {
	if !m.Enabled() {
		return
	}
	m.versionConflicts.WithLabelValues(resource).Inc()
}

// RecordDuplicateRequest counts a replayed idempotency key.
func (m *Manager) RecordDuplicateRequest() {
	if !m.Enabled() {
		return
	}
	m.duplicateRequests.Inc()
}

// UpdateParticipantsTotal sets the participant gauge.
func (m *Manager) UpdateParticipantsTotal(count int) {
	if !m.Enabled() {
		return
	}
	m.participantsTotal.Set(float64(count))
}

// RecordStoreLatency observes a store operation's latency.
func (m *Manager) RecordStoreLatency(operation string, latencyMs float64) {
	if !m.Enabled() {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest counts an HTTP request and observes its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.Enabled() {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if !m.Enabled() {
		return
	}
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	if !m.Enabled() {
		return
	}
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !m.Enabled() {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// SampleSystem records heap usage, goroutine count and the latest GC pause.
func (m *Manager) SampleSystem() {
	if !m.Enabled() {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		m.systemGCPauseTime.Observe(float64(pause) / float64(time.Millisecond))
	}
}

// StartSystemCollector samples runtime stats every refresh interval until
// ctx is cancelled.
func (m *Manager) StartSystemCollector(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	go func() {
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SampleSystem()
			}
		}
	}()
}

// Package-level recorders delegate to the global manager.

// RecordRating counts a recorded rating and observes its latency.
func RecordRating(positive bool, latencyMs float64) { globalManager.RecordRating(positive, latencyMs) }

// RecordScoreDelta observes the magnitude of a score change.
func RecordScoreDelta(delta float64) { globalManager.RecordScoreDelta(delta) }

// RecordMatchCreated counts a newly created match.
func RecordMatchCreated() { globalManager.RecordMatch(true) }

// RecordMatchExisting counts a mutual positive whose match already existed.
func RecordMatchExisting() { globalManager.RecordMatch(false) }

// RecordVersionConflict counts an optimistic concurrency conflict.
func RecordVersionConflict(resource string) { globalManager.RecordVersionConflict(resource) }

// RecordDuplicateRequest counts a replayed idempotency key.
func RecordDuplicateRequest() { globalManager.RecordDuplicateRequest() }

// UpdateParticipantsTotal sets the participant gauge.
func UpdateParticipantsTotal(count int) { globalManager.UpdateParticipantsTotal(count) }

// RecordStoreLatency observes a store operation's latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.RecordStoreLatency(operation, latencyMs)
}

// RecordHTTPRequest counts an HTTP request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.RecordErrorByType(errorType, severity)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// StartSystemCollector starts the global manager's runtime sampler.
func StartSystemCollector(ctx context.Context) { globalManager.StartSystemCollector(ctx) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
