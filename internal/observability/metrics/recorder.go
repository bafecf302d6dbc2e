// Package metrics provides custom Prometheus metrics for the recorder and its collaborators.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecorderMetrics contains all Prometheus metrics related to recording sessions.
// A nil *RecorderMetrics is valid and records nothing.
type RecorderMetrics struct {
	ChunksWritten   prometheus.Counter
	BytesWritten    prometheus.Counter
	ReadFailures    prometheus.Counter
	WriteFailures   prometheus.Counter
	FrontEndErrors  *prometheus.CounterVec
	Sessions        *prometheus.CounterVec
	State           prometheus.Gauge
	AppendLatency   prometheus.Histogram
	SessionDuration prometheus.Histogram

	collectors []prometheus.Collector
}

// NewRecorderMetrics creates the recorder metrics and registers them with registry.
func NewRecorderMetrics(registry *prometheus.Registry) (*RecorderMetrics, error) {
	m := &RecorderMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recorder metrics: %w", err)
	}
	return m, nil
}

func (m *RecorderMetrics) initMetrics() {
	m.ChunksWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_chunks_written_total",
		Help: "Total number of PCM chunks appended to recordings",
	})
	m.BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_bytes_written_total",
		Help: "Total number of PCM bytes appended to recordings",
	})
	m.ReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_read_failures_total",
		Help: "Total number of failed sample source reads",
	})
	m.WriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_write_failures_total",
		Help: "Total number of failed container appends",
	})
	m.FrontEndErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_frontend_errors_total",
		Help: "Total number of acoustic front-end errors by stage",
	}, []string{"stage"})
	m.Sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_sessions_total",
		Help: "Total number of recording sessions by outcome",
	}, []string{"outcome"})
	m.State = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_state",
		Help: "Current recorder state (0 idle, 1 recording, 2 stopping)",
	})
	m.AppendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_append_duration_seconds",
		Help:    "Latency of container appends including sync",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})
	m.SessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_session_duration_seconds",
		Help:    "Length of finished recording sessions",
		Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount15),
	})

	m.collectors = []prometheus.Collector{
		m.ChunksWritten, m.BytesWritten, m.ReadFailures, m.WriteFailures,
		m.FrontEndErrors, m.Sessions, m.State, m.AppendLatency, m.SessionDuration,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *RecorderMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *RecorderMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordAppend records one successful append of n bytes.
func (m *RecorderMetrics) RecordAppend(n int, took time.Duration) {
	if m == nil {
		return
	}
	m.ChunksWritten.Inc()
	m.BytesWritten.Add(float64(n))
	m.AppendLatency.Observe(took.Seconds())
}

// RecordWriteFailure counts a failed append.
func (m *RecorderMetrics) RecordWriteFailure() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

// RecordReadFailure counts a failed source read.
func (m *RecorderMetrics) RecordReadFailure() {
	if m == nil {
		return
	}
	m.ReadFailures.Inc()
}

// RecordFrontEndError counts a front-end error at stage.
func (m *RecorderMetrics) RecordFrontEndError(stage string) {
	if m == nil {
		return
	}
	m.FrontEndErrors.WithLabelValues(stage).Inc()
}

// RecordSession counts a finished session. A zero duration is not observed.
func (m *RecorderMetrics) RecordSession(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.SessionDuration.Observe(d.Seconds())
	}
}

// SetState sets the state gauge.
func (m *RecorderMetrics) SetState(state int) {
	if m == nil {
		return
	}
	m.State.Set(float64(state))
}
