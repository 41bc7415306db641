package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	dropReasonQueueFull   = "queue_full"
	dropReasonCircuitOpen = "circuit_open"
	dropReasonSinkFailure = "sink_failure"
)

// Metrics tracks the audit pipeline. A nil *Metrics records nothing.
type Metrics struct {
	Emitted   prometheus.Counter
	Persisted prometheus.Counter
	Dropped   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounter(prometheus.CounterOpts{
			Name: "vetclinic_audit_events_emitted_total",
			Help: "Audit events accepted onto the queue",
		}),
		Persisted: f.NewCounter(prometheus.CounterOpts{
			Name: "vetclinic_audit_events_persisted_total",
			Help: "Audit events written to the sink",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vetclinic_audit_events_dropped_total",
			Help: "Audit events lost, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) incEmitted() {
	if m != nil {
		m.Emitted.Inc()
	}
}

func (m *Metrics) incPersisted() {
	if m != nil {
		m.Persisted.Inc()
	}
}

func (m *Metrics) incDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}
