package describe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes pipeline counters on a Prometheus registry. All methods
// are safe on a nil receiver so the pipeline can run unobserved.
type Metrics struct {
	entities   prometheus.Counter
	failures   *prometheus.CounterVec
	containers prometheus.Counter
	hashed     prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		entities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "descry_entities_processed_total",
			Help: "Entities that completed analysis.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "descry_entity_failures_total",
			Help: "Contained per-entity failures by stage.",
		}, []string{"stage"}),
		containers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "descry_containers_descended_total",
			Help: "Containers whose members were walked.",
		}),
		hashed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "descry_bytes_hashed_total",
			Help: "Bytes fed through the digest sinks.",
		}),
	}
	reg.MustRegister(m.entities, m.failures, m.containers, m.hashed)
	return m
}

func (m *Metrics) EntityProcessed() {
	if m != nil {
		m.entities.Inc()
	}
}

func (m *Metrics) EntityFailed(stage string) {
	if m != nil {
		m.failures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ContainerDescended() {
	if m != nil {
		m.containers.Inc()
	}
}

func (m *Metrics) BytesHashed(n int64) {
	if m != nil {
		m.hashed.Add(float64(n))
	}
}
