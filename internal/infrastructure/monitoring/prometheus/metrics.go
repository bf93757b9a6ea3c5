package prometheus

import (
	"net/http"
	"strconv"
	"time"
)

// DetectionMetrics holds every metric emitted by the detection platform.
type DetectionMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Analysis pipeline
	AnalysisRequestsTotal    CounterVec
	AnalysisDuration         HistogramVec
	AnalysisTextSize         HistogramVec
	MentionsDetectedTotal    CounterVec
	SuggestionsTotal         CounterVec
	ConsistencyWarningsTotal CounterVec

	// Registry snapshot cache
	RegistryCacheHitsTotal   CounterVec
	RegistryCacheMissesTotal CounterVec
	RegistryLoadDuration     HistogramVec
	RegistryStaleServesTotal CounterVec
	RegistryEntityCount      GaugeVec

	// Scheduler
	ScansScheduledTotal  CounterVec
	ScansSupersededTotal CounterVec
	ScansDiscardedTotal  CounterVec
	ScansExecutedTotal   CounterVec

	// AI adapter
	AdapterRequestsTotal CounterVec
	AdapterDuration      HistogramVec

	// Messaging
	EventsPublishedTotal CounterVec

	// Cross-cutting
	ErrorsTotal CounterVec
}

var (
	// DefaultHTTPDurationBuckets covers interactive request latencies.
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	// DefaultAnalysisDurationBuckets covers the full-document scan path,
	// which is expected to stay under 500ms for typical chapter sizes.
	DefaultAnalysisDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15}

	// DefaultTextSizeBuckets covers document sizes in bytes.
	DefaultTextSizeBuckets = []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000}
)

// NewDetectionMetrics registers all platform metrics against the collector.
func NewDetectionMetrics(collector MetricsCollector) *DetectionMetrics {
	m := &DetectionMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	// Analysis
	m.AnalysisRequestsTotal = collector.RegisterCounter("analysis_requests_total", "Document analyses", "trigger", "status")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Document analysis duration", DefaultAnalysisDurationBuckets, "trigger")
	m.AnalysisTextSize = collector.RegisterHistogram("analysis_text_bytes", "Analyzed document size", DefaultTextSizeBuckets, "trigger")
	m.MentionsDetectedTotal = collector.RegisterCounter("mentions_detected_total", "Entity mentions detected", "match_type", "entity_type")
	m.SuggestionsTotal = collector.RegisterCounter("suggestions_total", "Suggestions generated", "kind")
	m.ConsistencyWarningsTotal = collector.RegisterCounter("consistency_warnings_total", "Consistency warnings raised", "category", "severity")

	// Registry cache
	m.RegistryCacheHitsTotal = collector.RegisterCounter("registry_cache_hits_total", "Registry snapshot cache hits", "cache")
	m.RegistryCacheMissesTotal = collector.RegisterCounter("registry_cache_misses_total", "Registry snapshot cache misses", "cache")
	m.RegistryLoadDuration = collector.RegisterHistogram("registry_load_duration_seconds", "Registry snapshot load duration", DefaultHTTPDurationBuckets, "source")
	m.RegistryStaleServesTotal = collector.RegisterCounter("registry_stale_serves_total", "Analyses served from an expired snapshot")
	m.RegistryEntityCount = collector.RegisterGauge("registry_entity_count", "Entities in the last loaded snapshot", "project_id")

	// Scheduler
	m.ScansScheduledTotal = collector.RegisterCounter("scheduler_scans_scheduled_total", "Scans scheduled", "kind")
	m.ScansSupersededTotal = collector.RegisterCounter("scheduler_scans_superseded_total", "Pending scans replaced by a newer edit")
	m.ScansDiscardedTotal = collector.RegisterCounter("scheduler_scans_discarded_total", "Completed scans discarded as stale")
	m.ScansExecutedTotal = collector.RegisterCounter("scheduler_scans_executed_total", "Scans whose results were delivered", "kind")

	// AI adapter
	m.AdapterRequestsTotal = collector.RegisterCounter("ai_adapter_requests_total", "AI adapter calls", "operation", "status")
	m.AdapterDuration = collector.RegisterHistogram("ai_adapter_duration_seconds", "AI adapter call duration", DefaultAnalysisDurationBuckets, "operation")

	// Messaging
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Events published to the message bus", "topic", "status")

	// Cross-cutting
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// NewNopDetectionMetrics returns a DetectionMetrics whose every metric is a
// no-op. Components accept it when metrics are disabled or in unit tests.
func NewNopDetectionMetrics() *DetectionMetrics {
	return NewDetectionMetrics(nopCollector{})
}

type nopCollector struct{}

func (nopCollector) RegisterCounter(_, _ string, _ ...string) CounterVec { return noopCounterVec{} }
func (nopCollector) RegisterGauge(_, _ string, _ ...string) GaugeVec     { return noopGaugeVec{} }
func (nopCollector) RegisterHistogram(_, _ string, _ []float64, _ ...string) HistogramVec {
	return noopHistogramVec{}
}
func (nopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

// Helpers

// RecordHTTPRequest updates the HTTP request counter and latency histogram.
func RecordHTTPRequest(m *DetectionMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis records one completed or failed document analysis.
func RecordAnalysis(m *DetectionMetrics, trigger string, textBytes int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.AnalysisRequestsTotal.WithLabelValues(trigger, status).Inc()
	m.AnalysisDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	m.AnalysisTextSize.WithLabelValues(trigger).Observe(float64(textBytes))
}

// RecordCacheAccess records one registry snapshot cache lookup.
func RecordCacheAccess(m *DetectionMetrics, cache string, hit bool) {
	if hit {
		m.RegistryCacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.RegistryCacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordAdapterCall records one AI adapter round trip.
func RecordAdapterCall(m *DetectionMetrics, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.AdapterRequestsTotal.WithLabelValues(operation, status).Inc()
	m.AdapterDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments the cross-cutting error counter.
func RecordError(m *DetectionMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
