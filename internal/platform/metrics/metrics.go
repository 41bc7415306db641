package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
}

// New creates and registers the HTTP metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vetclinic_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route and method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vetclinic_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveEndpointLatency records a request duration.
func (m *Metrics) ObserveEndpointLatency(method, route string, d time.Duration) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncRequest counts a completed request.
func (m *Metrics) IncRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, status).Inc()
}
