package querycache

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded per lookup.
const (
	outcomeHit    = "hit"
	outcomeMiss   = "miss"
	outcomeShared = "shared"
	outcomeError  = "error"
)

// Metrics counts cache lookups per resource and outcome. A nil *Metrics
// records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics registers the cache collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_querycache_lookups_total",
			Help: "Query cache lookups by resource and outcome.",
		}, []string{"resource", "outcome"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_querycache_invalidations_total",
			Help: "Resource-wide cache invalidations.",
		}, []string{"resource"}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.invalidations)
	}
	return m
}

func (m *Metrics) lookup(resource, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) invalidated(resource string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(resource).Inc()
}
