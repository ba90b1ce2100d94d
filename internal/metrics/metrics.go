package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice server
type Metrics struct {
	// Connection and session metrics
	SessionsActive   prometheus.Gauge
	ConnectionsTotal prometheus.Counter

	// Ingestion metrics
	ChunksTotal    *prometheus.CounterVec
	RecordingBytes prometheus.Histogram

	// Pipeline metrics
	PipelineRunsTotal    *prometheus.CounterVec
	PipelineStageSeconds *prometheus.HistogramVec

	// Voice note upload metrics
	VoiceNotesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests can hand in a private
// registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "swara_sessions_active",
			Help: "Current number of live audio sessions",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "swara_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),

		ChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swara_chunks_total",
			Help: "Total number of audio chunks by ingestion result",
		}, []string{"result"}),
		RecordingBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "swara_recording_bytes",
			Help:    "Size of completed recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
		}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swara_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		PipelineStageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swara_pipeline_stage_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stage"}),

		VoiceNotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swara_voice_notes_total",
			Help: "Total number of voice note uploads by result",
		}, []string{"result"}),
	}
}

// RecordChunk counts one ingested chunk by result
func (m *Metrics) RecordChunk(accepted bool) {
	if accepted {
		m.ChunksTotal.WithLabelValues("accepted").Inc()
		return
	}
	m.ChunksTotal.WithLabelValues("rejected").Inc()
}

// RecordConnection counts one accepted WebSocket connection
func (m *Metrics) RecordConnection() {
	m.ConnectionsTotal.Inc()
}

// SetActiveSessions sets the live session gauge
func (m *Metrics) SetActiveSessions(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordRecording observes the byte size of a completed recording
func (m *Metrics) RecordRecording(sizeBytes int) {
	m.RecordingBytes.Observe(float64(sizeBytes))
}

// RecordVoiceNote counts one voice note upload by result
func (m *Metrics) RecordVoiceNote(result string) {
	m.VoiceNotesTotal.WithLabelValues(result).Inc()
}
