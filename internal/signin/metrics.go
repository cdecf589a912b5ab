package signin

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSigned   = "signed"
	outcomeDegraded = "degraded"
	outcomePending  = "pending_approval"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type Metrics struct {
	signInOutcomes *prometheus.CounterVec
	registryCalls  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signInOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minihost",
			Subsystem: "signin",
			Name:      "outcomes_total",
			Help:      "Sign-in flow outcomes by result.",
		}, []string{"outcome"}),
		registryCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minihost",
			Subsystem: "signin",
			Name:      "registry_calls_total",
			Help:      "Key registry calls by operation and result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.signInOutcomes, m.registryCalls)
	}
	return m
}

func (m *Metrics) outcome(name string) {
	if m == nil {
		return
	}
	m.signInOutcomes.WithLabelValues(name).Inc()
}

func (m *Metrics) registryCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.registryCalls.WithLabelValues(op, result).Inc()
}
