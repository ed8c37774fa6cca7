// Package metrics exposes Prometheus instruments for the watcher, capture,
// pipeline, inference engine and HTTP surfaces. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for trnscrb.
type Metrics struct {
	// Presence
	PresenceState      prometheus.Gauge
	PresenceTransition *prometheus.CounterVec
	Conversations      *prometheus.CounterVec

	// Capture
	CaptureActive   prometheus.Gauge
	CaptureDuration prometheus.Histogram
	CaptureFailures prometheus.Counter

	// Pipeline
	PipelineBusy     prometheus.Gauge
	PipelineRuns     *prometheus.CounterVec
	PipelineStage    *prometheus.HistogramVec
	PendingClips     prometheus.Gauge
	DroppedClips     prometheus.Counter
	TranscriptsSaved prometheus.Counter

	// Inference engine
	EngineRequests *prometheus.CounterVec
	EngineDuration *prometheus.HistogramVec
	EngineBreaker  *prometheus.GaugeVec

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg uses a fresh
// private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		PresenceState: f.NewGauge(prometheus.GaugeOpts{
			Name: "trnscrb_presence_state",
			Help: "Current watcher state (0 idle, 1 warming, 2 active, 3 cooling)",
		}),
		PresenceTransition: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trnscrb_presence_transitions_total",
			Help: "Watcher state transitions",
		}, []string{"from", "to"}),
		Conversations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trnscrb_conversations_total",
			Help: "Conversation edges by outcome",
		}, []string{"outcome"}),

		CaptureActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "trnscrb_capture_active",
			Help: "1 while an input stream is open",
		}),
		CaptureDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trnscrb_capture_duration_seconds",
			Help:    "Length of captured clips",
			Buckets: prometheus.ExponentialBuckets(15, 2, 9), // 15s to ~1h
		}),
		CaptureFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trnscrb_capture_failures_total",
			Help: "Capture starts that failed",
		}),

		PipelineBusy: f.NewGauge(prometheus.GaugeOpts{
			Name: "trnscrb_pipeline_busy",
			Help: "1 while a pipeline run is in flight",
		}),
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trnscrb_pipeline_runs_total",
			Help: "Finished pipeline runs by result",
		}, []string{"result"}),
		PipelineStage: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trnscrb_pipeline_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
		}, []string{"stage"}),
		PendingClips: f.NewGauge(prometheus.GaugeOpts{
			Name: "trnscrb_pending_clips",
			Help: "Clips waiting for the pipeline",
		}),
		DroppedClips: f.NewCounter(prometheus.CounterOpts{
			Name: "trnscrb_dropped_clips_total",
			Help: "Clips dropped because the pending queue was full",
		}),
		TranscriptsSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "trnscrb_transcripts_saved_total",
			Help: "Transcripts written to the notes directory",
		}),

		EngineRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trnscrb_engine_requests_total",
			Help: "Inference engine calls by method and code",
		}, []string{"method", "code"}),
		EngineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trnscrb_engine_request_duration_seconds",
			Help:    "Inference engine call latency",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"method"}),
		EngineBreaker: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trnscrb_engine_breaker_state",
			Help: "Circuit breaker state per engine method (0 closed, 1 open, 2 half-open)",
		}, []string{"method"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trnscrb_http_requests_total",
			Help: "HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trnscrb_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		registry: reg,
	}
}

// Gatherer returns the registry backing these metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// SetPresenceState records the watcher state ordinal.
func (m *Metrics) SetPresenceState(state int) {
	if m == nil {
		return
	}
	m.PresenceState.Set(float64(state))
}

// RecordTransition counts a watcher state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.PresenceTransition.WithLabelValues(from, to).Inc()
}

// RecordConversation counts started, ended and discarded conversations.
func (m *Metrics) RecordConversation(outcome string) {
	if m == nil {
		return
	}
	m.Conversations.WithLabelValues(outcome).Inc()
}

// SetCaptureActive flips the capture gauge.
func (m *Metrics) SetCaptureActive(active bool) {
	if m == nil {
		return
	}
	m.CaptureActive.Set(boolToFloat(active))
}

// RecordClip observes the length of a finished clip.
func (m *Metrics) RecordClip(seconds float64) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(seconds)
}

// RecordCaptureFailure counts a failed capture start.
func (m *Metrics) RecordCaptureFailure() {
	if m == nil {
		return
	}
	m.CaptureFailures.Inc()
}

// SetPipelineBusy flips the pipeline gauge.
func (m *Metrics) SetPipelineBusy(busy bool) {
	if m == nil {
		return
	}
	m.PipelineBusy.Set(boolToFloat(busy))
}

// RecordRun counts a finished run ("done" or "failed").
func (m *Metrics) RecordRun(result string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(result).Inc()
	if result == "done" {
		m.TranscriptsSaved.Inc()
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.PipelineStage.WithLabelValues(stage).Observe(seconds)
}

// SetPending records the pending queue length.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingClips.Set(float64(n))
}

// RecordDropped counts a clip dropped from the pending queue.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.DroppedClips.Inc()
}

// RecordEngineCall records an inference engine call.
func (m *Metrics) RecordEngineCall(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.EngineRequests.WithLabelValues(method, code).Inc()
	m.EngineDuration.WithLabelValues(method).Observe(seconds)
}

// SetBreakerState records an engine circuit breaker state ordinal.
func (m *Metrics) SetBreakerState(method string, state int) {
	if m == nil {
		return
	}
	m.EngineBreaker.WithLabelValues(method).Set(float64(state))
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
