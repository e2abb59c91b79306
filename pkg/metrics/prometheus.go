// Package metrics provides Prometheus metrics for the gacha simulator service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the simulator.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Business Metrics - pulls and what they produced
	pulls             *prometheus.CounterVec
	pullResults       *prometheus.CounterVec
	rateUpHits        prometheus.Counter
	placeholders      prometheus.Counter
	guaranteesApplied prometheus.Counter
	pullsRejected     *prometheus.CounterVec
	pullLatency       prometheus.Histogram
	idempotentReplays prometheus.Counter

	// Session Health Metrics
	walletCrystals     prometheus.Gauge
	walletTickets      prometheus.Gauge
	trackedCharacters  prometheus.Gauge
	historyEntries     prometheus.Gauge
	catalogBanners     prometheus.Gauge
	idempotencyEntries prometheus.Gauge

	// Persistence Metrics - snapshot queue and writer
	persistQueueSize     prometheus.Gauge
	persistQueueCapacity prometheus.Gauge
	persistEnqueued      prometheus.Counter
	persistDropped       prometheus.Counter
	persistParked        prometheus.Counter
	persistWrites        prometheus.Counter
	persistSkipped       prometheus.Counter
	persistErrors        prometheus.Counter
	persistLatency       prometheus.Histogram
	restoreFallbacks     *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
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
		namespace:        "gacha",
		subsystem:        "simulator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval returns how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}

	// Core Business Metrics
	m.pulls = counterVec("pulls_total", "Total number of paid pull batches by kind and currency", "kind", "currency")
	m.pullResults = counterVec("pull_results_total", "Total number of drawn units by rarity", "rarity")
	m.rateUpHits = counter("rateup_hits_total", "Total number of drawn units on a rate-up tier")
	m.placeholders = counter("placeholders_total", "Total number of synthetic placeholder results (degenerate banners)")
	m.guaranteesApplied = counter("guarantees_applied_total", "Total number of ten-pulls where the 4★ floor overwrote the last slot")
	m.pullsRejected = counterVec("pulls_rejected_total", "Total number of rejected pulls by reason", "reason")
	m.pullLatency = histogram("pull_latency_milliseconds", "Time to resolve a pull batch excluding the reveal delay", m.histogramBuckets)
	m.idempotentReplays = counter("idempotent_replays_total", "Total number of pull requests served from the idempotency cache")

	// Session Health Metrics
	m.walletCrystals = gauge("wallet_crystals", "Current crystal balance")
	m.walletTickets = gauge("wallet_tickets", "Current ticket balance")
	m.trackedCharacters = gauge("tracked_characters", "Number of characters with a mastery level")
	m.historyEntries = gauge("history_entries", "Number of recorded pull batches")
	m.catalogBanners = gauge("catalog_banners", "Number of banners in the catalog")
	m.idempotencyEntries = gauge("idempotency_entries", "Number of cached idempotency keys")

	// Persistence Metrics
	m.persistQueueSize = gauge("persist_queue_size", "Current number of snapshots waiting to be written")
	m.persistQueueCapacity = gauge("persist_queue_capacity", "Maximum persist queue capacity")
	m.persistEnqueued = counter("persist_enqueued_total", "Total number of snapshots enqueued for persistence")
	m.persistDropped = counter("persist_dropped_total", "Total number of snapshots never written: offered after shutdown or superseded while parked")
	m.persistParked = counter("persist_parked_total", "Total number of snapshots parked because the queue could not take them")
	m.persistWrites = counter("persist_writes_total", "Total number of snapshots written to the store")
	m.persistSkipped = counter("persist_skipped_total", "Total number of stale snapshots skipped by the writer")
	m.persistErrors = counter("persist_errors_total", "Total number of failed snapshot writes")
	m.persistLatency = histogram("persist_latency_milliseconds", "Snapshot write latency in milliseconds", m.histogramBuckets)
	m.restoreFallbacks = counterVec("restore_fallbacks_total", "Total number of persisted keys replaced by defaults on restore", "key")

	// HTTP Performance Metrics
	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			ConstLabels: labels,
			Buckets:     m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	// System Performance Metrics
	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordPull counts one paid batch.
func RecordPull(kind, currency string) {
	if !globalManager.enabled {
		return
	}
	globalManager.pulls.WithLabelValues(kind, currency).Inc()
}

// RecordPullResult counts one drawn unit.
func RecordPullResult(rarity int, rateUp, placeholder bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.pullResults.WithLabelValues(strconv.Itoa(rarity)).Inc()
	if rateUp {
		globalManager.rateUpHits.Inc()
	}
	if placeholder {
		globalManager.placeholders.Inc()
	}
}

// RecordGuaranteeApplied counts a ten-pull whose last slot was forced to 4★ or better.
func RecordGuaranteeApplied() {
	globalManager.guaranteesApplied.Inc()
}

// RecordPullRejected counts a rejected pull.
func RecordPullRejected(reason string) {
	globalManager.pullsRejected.WithLabelValues(reason).Inc()
}

// RecordPullLatency records pull resolution latency in milliseconds.
func RecordPullLatency(latencyMs float64) {
	globalManager.pullLatency.Observe(latencyMs)
}

// RecordIdempotentReplay counts a pull served from the idempotency cache.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// UpdateWallet sets the balance gauges.
func UpdateWallet(crystals, tickets int) {
	globalManager.walletCrystals.Set(float64(crystals))
	globalManager.walletTickets.Set(float64(tickets))
}

// UpdateTrackedCharacters sets the progression size gauge.
func UpdateTrackedCharacters(count int) {
	globalManager.trackedCharacters.Set(float64(count))
}

// UpdateHistoryEntries sets the history size gauge.
func UpdateHistoryEntries(count int) {
	globalManager.historyEntries.Set(float64(count))
}

// UpdateCatalogBanners sets the catalog size gauge.
func UpdateCatalogBanners(count int) {
	globalManager.catalogBanners.Set(float64(count))
}

// UpdateIdempotencyEntries sets the idempotency cache size gauge.
func UpdateIdempotencyEntries(count int) {
	globalManager.idempotencyEntries.Set(float64(count))
}

// Persistence Metrics Functions.

// UpdatePersistQueueSize sets the current persist queue length.
func UpdatePersistQueueSize(size int) {
	globalManager.persistQueueSize.Set(float64(size))
}

// UpdatePersistQueueCapacity sets the persist queue capacity.
func UpdatePersistQueueCapacity(capacity int) {
	globalManager.persistQueueCapacity.Set(float64(capacity))
}

// RecordPersistEnqueued counts an accepted snapshot.
func RecordPersistEnqueued() {
	globalManager.persistEnqueued.Inc()
}

// RecordPersistDropped counts a snapshot that will never be written.
func RecordPersistDropped() {
	globalManager.persistDropped.Inc()
}

// RecordPersistParked counts a snapshot held back for the writer because the
// queue refused it.
func RecordPersistParked() {
	globalManager.persistParked.Inc()
}

// RecordPersistWrite records a successful snapshot write and its latency.
func RecordPersistWrite(latencyMs float64) {
	globalManager.persistWrites.Inc()
	globalManager.persistLatency.Observe(latencyMs)
}

// RecordPersistSkipped counts a stale snapshot skipped by the writer.
func RecordPersistSkipped() {
	globalManager.persistSkipped.Inc()
}

// RecordPersistError counts a failed snapshot write.
func RecordPersistError() {
	globalManager.persistErrors.Inc()
}

// RecordRestoreFallback counts a persisted key replaced by its default.
func RecordRestoreFallback(key string) {
	globalManager.restoreFallbacks.WithLabelValues(key).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Configure rebuilds the global manager on a fresh registry with opts.
// Call it at startup, before handlers capture GetRegistry.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	customRegistry = registry
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	return globalManager
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns the poll interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}
