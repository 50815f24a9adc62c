package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

type HTTPServerMetrics struct {
	collaboratorMetrics
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rateLimited     *prometheus.CounterVec

	ragRequestsTotal     *prometheus.CounterVec
	ragRetrievalHitTotal *prometheus.CounterVec
	ragNoContextTotal    *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
	ragDuration          *prometheus.HistogramVec

	documentsTotal *prometheus.CounterVec
	chunksAdded    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sindacato",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sindacato",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimited := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control, by reason.",
		},
		[]string{"service", "reason"},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total retrieval requests with at least one source.",
		},
		[]string{"service", "endpoint"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total retrieval requests without sources.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sindacato",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sindacato",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval and answer duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents handled by the API, by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chunksAdded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindacato",
			Subsystem: "ingest",
			Name:      "chunks_added_total",
			Help:      "Total chunks indexed through the API.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rateLimited,
		ragRequestsTotal,
		ragRetrievalHitTotal,
		ragNoContextTotal,
		ragRetrievedChunks,
		ragDuration,
		documentsTotal,
		chunksAdded,
	)

	return &HTTPServerMetrics{
		collaboratorMetrics:  newCollaboratorMetrics(registry, service),
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		rateLimited:          rateLimited,
		ragRequestsTotal:     ragRequestsTotal,
		ragRetrievalHitTotal: ragRetrievalHitTotal,
		ragNoContextTotal:    ragNoContextTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
		ragDuration:          ragDuration,
		documentsTotal:       documentsTotal,
		chunksAdded:          chunksAdded,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded.
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics", "/v1/stats", "/v1/documents", "/v1/documents/reload", "/v1/search", "/v1/rag/query":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordRAGObservation(endpoint string, sourceCount int, duration time.Duration) {
	m.ragRequestsTotal.WithLabelValues(m.service, endpoint).Inc()
	m.ragRetrievedChunks.WithLabelValues(m.service, endpoint).Observe(float64(sourceCount))
	m.ragDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(m.service, endpoint).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(m.service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordIngestReport(report domain.BatchReport) {
	for _, result := range report.Results {
		outcome := "indexed"
		if result.Skipped {
			outcome = "skipped"
		}
		m.documentsTotal.WithLabelValues(m.service, outcome).Inc()
	}
	if len(report.Failures) > 0 {
		m.documentsTotal.WithLabelValues(m.service, "failed").Add(float64(len(report.Failures)))
	}
	if report.ChunksAdded > 0 {
		m.chunksAdded.WithLabelValues(m.service).Add(float64(report.ChunksAdded))
	}
}

func (m *HTTPServerMetrics) RecordQueued() {
	m.documentsTotal.WithLabelValues(m.service, "queued").Inc()
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rateLimited.WithLabelValues(m.service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
