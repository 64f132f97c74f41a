package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the broker connection used for detection events,
// actuators and the sensor topic. A nil *MQTTMetrics records nothing.
type MQTTMetrics struct {
	connected  prometheus.Gauge
	reconnects prometheus.Counter
	messages   *prometheus.CounterVec
	payload    prometheus.Histogram
	publish    prometheus.Histogram
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cropguard_mqtt_connected",
			Help: "1 while the broker connection is up",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropguard_mqtt_reconnects_total",
			Help: "Broker reconnect attempts",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropguard_mqtt_messages_total",
			Help: "MQTT messages by direction and status",
		}, []string{"direction", "status"}),
		payload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropguard_mqtt_payload_bytes",
			Help:    "Published payload size",
			Buckets: prometheus.ExponentialBuckets(32, 4, 6),
		}),
		publish: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropguard_mqtt_publish_duration_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: latencyBuckets,
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// ObservePublish records one acknowledged publish.
func (m *MQTTMetrics) ObservePublish(sizeBytes int, latency time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues("out", StatusSuccess).Inc()
	m.payload.Observe(float64(sizeBytes))
	m.publish.Observe(latency.Seconds())
}

func (m *MQTTMetrics) IncrementReceived() {
	if m != nil {
		m.messages.WithLabelValues("in", StatusSuccess).Inc()
	}
}

// IncrementErrors counts a failed publish or a lost connection.
func (m *MQTTMetrics) IncrementErrors() {
	if m != nil {
		m.messages.WithLabelValues("out", StatusError).Inc()
	}
}

func (m *MQTTMetrics) IncrementReconnectAttempts() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.connected.Desc()
	ch <- m.reconnects.Desc()
	m.messages.Describe(ch)
	ch <- m.payload.Desc()
	ch <- m.publish.Desc()
}

func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.connected
	ch <- m.reconnects
	m.messages.Collect(ch)
	ch <- m.payload
	ch <- m.publish
}
