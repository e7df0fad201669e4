// Package metrics provides Prometheus metrics for the medixpert inference service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// confidenceBuckets spans the 0-100 confidence score.
var confidenceBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} //nolint:gochecknoglobals // bucket layout

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Inference
	predictions          *prometheus.CounterVec
	predictionFailures   *prometheus.CounterVec
	classifierFallbacks  *prometheus.CounterVec
	predictionLatency    prometheus.Histogram
	predictionConfidence *prometheus.HistogramVec
	idempotentReplays    prometheus.Counter

	// Model lifecycle
	modelLoaded      prometheus.Gauge
	modelTrainedAt   prometheus.Gauge
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	trainingExamples prometheus.Gauge
	trainingAccuracy prometheus.Gauge
	catalogSymptoms  prometheus.Gauge
	catalogDiseases  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "medixpert",
		subsystem:        "inference",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Successful predictions by the tier that produced them"),
		[]string{"method"})
	m.predictionFailures = auto.NewCounterVec(
		m.counterOpts("prediction_failures_total", "Predictions that returned no result, by reason"),
		[]string{"reason"})
	m.classifierFallbacks = auto.NewCounterVec(
		m.counterOpts("classifier_fallbacks_total", "Classifier soft failures that routed a request to the fallback scorer"),
		[]string{"reason"})
	m.predictionLatency = auto.NewHistogram(
		m.histogramOpts("prediction_latency_milliseconds", "End-to-end prediction latency in milliseconds", m.histogramBuckets))
	m.predictionConfidence = auto.NewHistogramVec(
		m.histogramOpts("prediction_confidence", "Confidence score (0-100) of served predictions", confidenceBuckets),
		[]string{"method"})
	m.idempotentReplays = auto.NewCounter(
		m.counterOpts("idempotent_replays_total", "Requests answered from an earlier prediction with the same idempotency key"))

	m.modelLoaded = auto.NewGauge(
		m.gaugeOpts("model_loaded", "1 when a trained model artifact is loaded and matches the catalog"))
	m.modelTrainedAt = auto.NewGauge(
		m.gaugeOpts("model_trained_timestamp_seconds", "Unix time the loaded model was trained"))
	m.trainingRuns = auto.NewCounterVec(
		m.counterOpts("training_runs_total", "Training runs by outcome"),
		[]string{"outcome"})
	m.trainingDuration = auto.NewHistogram(
		m.histogramOpts("training_duration_seconds", "Wall time of training runs", []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}))
	m.trainingExamples = auto.NewGauge(
		m.gaugeOpts("training_examples", "Examples in the last built training set"))
	m.trainingAccuracy = auto.NewGauge(
		m.gaugeOpts("training_accuracy", "Held-out accuracy of the last trained model"))
	m.catalogSymptoms = auto.NewGauge(
		m.gaugeOpts("catalog_symptoms", "Symptoms in the catalog"))
	m.catalogDiseases = auto.NewGauge(
		m.gaugeOpts("catalog_diseases", "Diseases in the catalog"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "HTTP error responses by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordPrediction counts a served prediction and observes its confidence.
func (m *Manager) RecordPrediction(method string, confidence float64, latency time.Duration) {
	m.predictions.WithLabelValues(method).Inc()
	m.predictionConfidence.WithLabelValues(method).Observe(confidence)
	m.predictionLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordPredictionFailure counts a request that ended without a prediction.
func (m *Manager) RecordPredictionFailure(reason string, latency time.Duration) {
	m.predictionFailures.WithLabelValues(reason).Inc()
	m.predictionLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordClassifierFallback counts a classifier soft failure.
func (m *Manager) RecordClassifierFallback(reason string) {
	m.classifierFallbacks.WithLabelValues(reason).Inc()
}

// RecordIdempotentReplay counts a replayed request.
func (m *Manager) RecordIdempotentReplay() { m.idempotentReplays.Inc() }

// SetModelLoaded reports whether a usable model is loaded.
func (m *Manager) SetModelLoaded(loaded bool, trainedAt time.Time) {
	if !loaded {
		m.modelLoaded.Set(0)
		return
	}
	m.modelLoaded.Set(1)
	m.modelTrainedAt.Set(float64(trainedAt.Unix()))
}

// RecordTraining records a finished training run.
func (m *Manager) RecordTraining(outcome string, d time.Duration, examples int, accuracy float64) {
	m.trainingRuns.WithLabelValues(outcome).Inc()
	m.trainingDuration.Observe(d.Seconds())
	if outcome == "success" {
		m.trainingExamples.Set(float64(examples))
		m.trainingAccuracy.Set(accuracy)
	}
}

// UpdateCatalogSize sets the catalog gauges.
func (m *Manager) UpdateCatalogSize(symptoms, diseases int) {
	m.catalogSymptoms.Set(float64(symptoms))
	m.catalogDiseases.Set(float64(diseases))
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error response.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystem sets process memory and goroutine gauges.
func (m *Manager) UpdateSystem(memBytes uint64, goroutines int) {
	m.systemMemoryUsage.Set(float64(memBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
}

// Default returns the process-wide manager.
func Default() *Manager { return globalManager }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
