package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
)

// Metrics provides observability for the person registry.
// Tracks lifecycle counts, outcomes and operation latency.
type Metrics struct {
	PeopleCreated     prometheus.Counter
	PeopleDeleted     prometheus.Counter
	Outcomes          *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Population        prometheus.Gauge
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PeopleCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "vetclinic_people_created_total",
			Help: "Total number of people created",
		}),
		PeopleDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "vetclinic_people_deleted_total",
			Help: "Total number of people deleted",
		}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vetclinic_person_operations_total",
			Help: "Person operations by operation and result code",
		}, []string{"operation", "result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vetclinic_person_operation_duration_seconds",
			Help:    "Duration of person registry operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		Population: f.NewGauge(prometheus.GaugeOpts{
			Name: "vetclinic_people",
			Help: "People currently in the registry, sampled by the health check",
		}),
	}
}

// IncrementCreated records a successful create.
func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.PeopleCreated.Inc()
}

// IncrementDeleted records a successful delete.
func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.PeopleDeleted.Inc()
}

// Observe records an operation's duration and outcome. Call with time.Now()
// taken at the start of the operation.
func (m *Metrics) Observe(op string, start time.Time, result string) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.Outcomes.WithLabelValues(op, result).Inc()
}

// SetPopulation records the current registry size.
func (m *Metrics) SetPopulation(n int) {
	if m == nil {
		return
	}
	m.Population.Set(float64(n))
}
