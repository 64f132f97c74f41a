package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics covers the detection pipeline: files seen, outcome
// counters, fan-out deliveries and deterrent activity.
type DetectionMetrics struct {
	registry *prometheus.Registry

	filesSeen        prometheus.Counter
	watcherErrors    prometheus.Counter
	outcomes         *prometheus.CounterVec
	fanOutRecipients prometheus.Histogram
	deliveries       *prometheus.CounterVec
	sequences        *prometheus.CounterVec
	actuatorErrors   *prometheus.CounterVec
}

// NewDetectionMetrics creates and registers detection pipeline metrics.
func NewDetectionMetrics(registry *prometheus.Registry) (*DetectionMetrics, error) {
	m := &DetectionMetrics{
		registry: registry,
		filesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropguard_detection_files_total",
			Help: "Detection images picked up from the watched directory",
		}),
		watcherErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropguard_watcher_errors_total",
			Help: "Failed scans of the watched directory",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropguard_outcomes_total",
			Help: "Counter increments by outcome and category since start",
		}, []string{"outcome", "category"}),
		fanOutRecipients: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropguard_fanout_recipients",
			Help:    "Requests delivered per detection",
			Buckets: recipientBuckets,
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropguard_messaging_deliveries_total",
			Help: "Messaging calls by operation and status",
		}, []string{"operation", "status"}),
		sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropguard_deterrent_sequences_total",
			Help: "Deterrent sequences started by kind",
		}, []string{"kind"}),
		actuatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropguard_actuator_errors_total",
			Help: "Failed actuator switches by actuator",
		}, []string{"actuator"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

// TrackPending exposes fn as the pending request gauge.
func (m *DetectionMetrics) TrackPending(fn func() int) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cropguard_pending_requests",
		Help: "Confirmation requests awaiting an answer",
	}, func() float64 { return float64(fn()) })
	if err := m.registry.Register(g); err != nil {
		return fmt.Errorf("failed to register pending gauge: %w", err)
	}
	return nil
}

// Every recording method is a no-op on a nil receiver.

func (m *DetectionMetrics) IncrementFilesSeen() {
	if m != nil {
		m.filesSeen.Inc()
	}
}

func (m *DetectionMetrics) IncrementWatcherErrors() {
	if m != nil {
		m.watcherErrors.Inc()
	}
}

// ObserveOutcome matches datastore.IncrementObserver once the types are converted.
func (m *DetectionMetrics) ObserveOutcome(outcome, category string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome, category).Inc()
}

func (m *DetectionMetrics) ObserveFanOut(delivered int) {
	if m == nil {
		return
	}
	m.fanOutRecipients.Observe(float64(delivered))
}

func (m *DetectionMetrics) RecordDelivery(operation string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveries.WithLabelValues(operation, status).Inc()
}

func (m *DetectionMetrics) IncrementSequence(kind string) {
	if m == nil {
		return
	}
	m.sequences.WithLabelValues(kind).Inc()
}

func (m *DetectionMetrics) IncrementActuatorErrors(actuator string) {
	if m == nil {
		return
	}
	m.actuatorErrors.WithLabelValues(actuator).Inc()
}

// Describe implements prometheus.Collector.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.filesSeen.Desc()
	ch <- m.watcherErrors.Desc()
	m.outcomes.Describe(ch)
	ch <- m.fanOutRecipients.Desc()
	m.deliveries.Describe(ch)
	m.sequences.Describe(ch)
	m.actuatorErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.filesSeen
	ch <- m.watcherErrors
	m.outcomes.Collect(ch)
	ch <- m.fanOutRecipients
	m.deliveries.Collect(ch)
	m.sequences.Collect(ch)
	m.actuatorErrors.Collect(ch)
}
