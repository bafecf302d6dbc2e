package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains all Prometheus metrics related to the status publisher.
// A nil *MQTTMetrics is valid and records nothing.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesDelivered prometheus.Counter
	Errors            prometheus.Counter
	ReconnectAttempts prometheus.Counter
	MessageSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
}

// NewMQTTMetrics creates the MQTT metrics and registers them with registry.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connection_status",
			Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_messages_delivered_total",
			Help: "Total number of MQTT status messages successfully delivered",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_errors_total",
			Help: "Total number of MQTT errors encountered",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_reconnect_attempts_total",
			Help: "Total number of MQTT reconnection attempts",
		}),
		MessageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_message_size_bytes",
			Help:    "Size of MQTT messages in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_publish_latency_seconds",
			Help:    "Latency of MQTT publish operations in seconds",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus updates the MQTT connection status gauge.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}

// IncrementMessagesDelivered increments the count of successfully delivered messages.
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	if m == nil {
		return
	}
	m.MessagesDelivered.Inc()
}

// IncrementErrors increments the count of MQTT errors.
func (m *MQTTMetrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}

// IncrementReconnectAttempts increments the count of reconnection attempts.
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// ObserveMessageSize records the size of an MQTT message.
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes int) {
	if m == nil {
		return
	}
	m.MessageSize.Observe(float64(sizeBytes))
}

// StartPublishTimer starts a timer for measuring publish latency.
func (m *MQTTMetrics) StartPublishTimer() *PublishTimer {
	return &PublishTimer{startTime: time.Now(), metrics: m}
}

// PublishTimer measures publish latency.
type PublishTimer struct {
	startTime time.Time
	metrics   *MQTTMetrics
}

// ObserveDuration stops the timer and records the duration.
func (pt *PublishTimer) ObserveDuration() {
	if pt.metrics == nil {
		return
	}
	pt.metrics.PublishLatency.Observe(time.Since(pt.startTime).Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectionStatus.Collect(ch)
	m.MessagesDelivered.Collect(ch)
	m.Errors.Collect(ch)
	m.ReconnectAttempts.Collect(ch)
	m.MessageSize.Collect(ch)
	m.PublishLatency.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.MessagesDelivered.Desc()
	ch <- m.Errors.Desc()
	ch <- m.ReconnectAttempts.Desc()
	ch <- m.MessageSize.Desc()
	ch <- m.PublishLatency.Desc()
}
