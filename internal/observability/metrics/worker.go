package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

type WorkerMetrics struct {
	collaboratorMetrics
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	chunksAdded     *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "worker",
			Name:      "ingest_requests_total",
			Help:      "Total ingest requests handled by outcome.",
		},
		[]string{"service", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sindacato",
			Subsystem: "worker",
			Name:      "ingest_duration_seconds",
			Help:      "Ingest request duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sindacato",
			Subsystem: "worker",
			Name:      "ingest_in_flight",
			Help:      "Number of in-flight ingest requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksAdded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "worker",
			Name:      "chunks_added_total",
			Help:      "Total chunks indexed by the worker.",
		},
		[]string{"service"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, chunksAdded)

	return &WorkerMetrics{
		collaboratorMetrics: newCollaboratorMetrics(registry, service),
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		chunksAdded:         chunksAdded,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRequest() {
	m.requestInFlight.Inc()
}

// FinishRequest classifies a handled request as success, skipped or error.
func (m *WorkerMetrics) FinishRequest(duration time.Duration, report domain.BatchReport, err error) {
	m.requestInFlight.Dec()

	status := "success"
	switch {
	case err != nil || len(report.Failures) > 0:
		status = "error"
	case len(report.Processed) == 0:
		status = "skipped"
	}
	m.requestTotal.WithLabelValues(m.service, status).Inc()
	m.requestDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if report.ChunksAdded > 0 {
		m.chunksAdded.WithLabelValues(m.service).Add(float64(report.ChunksAdded))
	}
}
