package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics covers admin alert providers.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	circuit    *prometheus.GaugeVec
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_provider_deliveries_total",
			Help: "Admin alert deliveries by provider and status",
		}, []string{"provider", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_provider_delivery_duration_seconds",
			Help:    "Admin alert delivery latency by provider",
			Buckets: latencyBuckets,
		}, []string{"provider"}),
		circuit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notification_provider_circuit_state",
			Help: "Circuit breaker state by provider (0=closed, 1=half-open, 2=open)",
		}, []string{"provider"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery records one provider send.
func (m *NotificationMetrics) RecordDelivery(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveries.WithLabelValues(provider, status).Inc()
	m.duration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// SetCircuitState records the circuit breaker state of a provider.
func (m *NotificationMetrics) SetCircuitState(provider string, state int) {
	if m == nil {
		return
	}
	m.circuit.WithLabelValues(provider).Set(float64(state))
}

// Describe implements prometheus.Collector.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveries.Describe(ch)
	m.duration.Describe(ch)
	m.circuit.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveries.Collect(ch)
	m.duration.Collect(ch)
	m.circuit.Collect(ch)
}
