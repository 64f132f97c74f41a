package metrics

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics covers outbound API calls made through httpclient.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers outbound HTTP metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Outbound HTTP requests by host, API method and status code",
		}, []string{"host", "method", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "Outbound HTTP request latency by host",
			Buckets: latencyBuckets,
		}, []string{"host"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// ObserveResponse matches httpclient.Client.SetAfterResponseHook. Only the
// last path segment is used as the method label so tokens embedded in the
// path never become label values.
func (m *HTTPMetrics) ObserveResponse(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	if m == nil || req == nil || req.URL == nil {
		return
	}
	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	host := req.URL.Hostname()
	m.requests.WithLabelValues(host, path.Base(req.URL.Path), status).Inc()
	m.duration.WithLabelValues(host).Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.duration.Collect(ch)
}
