// Package metrics provides Prometheus metrics for the pattern detection service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLocked  = "locked"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Detection run metrics
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTimestamp prometheus.Gauge
	lockContention   prometheus.Counter

	// Pass metrics
	passDuration *prometheus.HistogramVec
	passFailures *prometheus.CounterVec

	// Alert metrics
	alertsProposed       *prometheus.CounterVec
	alertsInserted       *prometheus.CounterVec
	alertInsertFailures  *prometheus.CounterVec
	alertsSuppressed     *prometheus.CounterVec
	notificationsSent    prometheus.Counter
	notificationFailures prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "patternwatch",
		subsystem:        "detector",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Total number of detection runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a full detection run",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.lastRunTimestamp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time of the last completed detection run",
		ConstLabels: m.constLabels,
	})

	m.lockContention = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "lock_contention_total",
		Help:        "Triggers rejected because another run held the lock",
		ConstLabels: m.constLabels,
	})

	m.passDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pass_duration_seconds",
		Help:        "Duration of each detection pass",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"pass"})

	m.passFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pass_failures_total",
		Help:        "Passes that degraded to no results because a query failed",
		ConstLabels: m.constLabels,
	}, []string{"pass"})

	m.alertsProposed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "alerts_proposed_total",
		Help:        "Alerts proposed by the detection passes",
		ConstLabels: m.constLabels,
	}, []string{"type"})

	m.alertsInserted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "alerts_inserted_total",
		Help:        "Alerts written to the store",
		ConstLabels: m.constLabels,
	}, []string{"type"})

	m.alertInsertFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "alert_insert_failures_total",
		Help:        "Alerts dropped because the insert failed",
		ConstLabels: m.constLabels,
	}, []string{"type"})

	m.alertsSuppressed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "alerts_suppressed_total",
		Help:        "Proposals dropped by the cooldown policy",
		ConstLabels: m.constLabels,
	}, []string{"type"})

	m.notificationsSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "notifications_sent_total",
		Help:        "Manager notifications written to the store",
		ConstLabels: m.constLabels,
	})

	m.notificationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "notification_failures_total",
		Help:        "Manager notifications dropped because the insert failed",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Current heap allocation in bytes",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Current number of goroutines",
		ConstLabels: m.constLabels,
	})
}

// RecordRun records the outcome and duration of a detection run.
func RecordRun(outcome string, seconds float64) {
	globalManager.RecordRun(outcome, seconds)
}

// RecordRun records the outcome and duration of a detection run.
func (m *Manager) RecordRun(outcome string, seconds float64) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeLocked {
		m.runDuration.Observe(seconds)
	}
}

// SetLastRun stores the unix time of the last completed run.
func SetLastRun(unixSeconds float64) {
	globalManager.lastRunTimestamp.Set(unixSeconds)
}

// RecordLockContention increments the lock contention counter.
func RecordLockContention() {
	globalManager.lockContention.Inc()
}

// RecordPass records how long a pass took.
func RecordPass(pass string, seconds float64) {
	globalManager.passDuration.WithLabelValues(pass).Observe(seconds)
}

// RecordPassFailure counts a pass that lost its results to a query failure.
func RecordPassFailure(pass string) {
	globalManager.passFailures.WithLabelValues(pass).Inc()
}

// RecordAlertProposed counts a proposal of the given alert type.
func RecordAlertProposed(alertType string) {
	globalManager.alertsProposed.WithLabelValues(alertType).Inc()
}

// RecordAlertInserted counts a stored alert.
func RecordAlertInserted(alertType string) {
	globalManager.alertsInserted.WithLabelValues(alertType).Inc()
}

// RecordAlertInsertFailure counts a dropped alert.
func RecordAlertInsertFailure(alertType string) {
	globalManager.alertInsertFailures.WithLabelValues(alertType).Inc()
}

// RecordAlertSuppressed counts a proposal removed by the cooldown policy.
func RecordAlertSuppressed(alertType string) {
	globalManager.alertsSuppressed.WithLabelValues(alertType).Inc()
}

// RecordNotificationSent counts a stored manager notification.
func RecordNotificationSent() {
	globalManager.notificationsSent.Inc()
}

// RecordNotificationFailure counts a dropped manager notification.
func RecordNotificationFailure() {
	globalManager.notificationFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the current heap allocation.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
