package metrics

import "github.com/prometheus/client_golang/prometheus"

// collaboratorMetrics tracks retries and breaker transitions of calls to
// Ollama, Qdrant and NATS. Both registries embed it so they satisfy
// resilience.Observer.
type collaboratorMetrics struct {
	service      string
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func newCollaboratorMetrics(registry *prometheus.Registry, service string) collaboratorMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "collaborator",
			Name:      "retries_total",
			Help:      "Total retried collaborator calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sindacato",
			Subsystem: "collaborator",
			Name:      "circuit_open",
			Help:      "1 when the circuit breaker of an operation is open or half-open.",
		},
		[]string{"service", "operation"},
	)
	registry.MustRegister(retriesTotal, breakerState)
	return collaboratorMetrics{service: service, retriesTotal: retriesTotal, breakerState: breakerState}
}

func (m collaboratorMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m collaboratorMetrics) ObserveBreakerState(operation, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
