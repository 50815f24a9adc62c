package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
	"github.com/scuola-sindacato/assistente/internal/observability/metrics"
)

// Ingestor is the ingestion surface the API needs on top of the inbound port.
type Ingestor interface {
	ports.DocumentIngestor
	SaveToLibrary(ctx context.Context, filename string, body io.Reader) (string, error)
}

// Publisher hands uploaded files to the ingest workers.
type Publisher interface {
	PublishIngestRequest(ctx context.Context, filename string) error
}

type Router struct {
	cfg       config.Config
	ingest    Ingestor
	query     ports.DocumentQueryService
	publisher Publisher
	metrics   *metrics.HTTPServerMetrics
}

type Option func(*Router)

// WithPublisher enables queued ingestion of uploads when cfg.IngestAsync is set.
func WithPublisher(p Publisher) Option {
	return func(rt *Router) { rt.publisher = p }
}

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(cfg config.Config, ingest Ingestor, query ports.DocumentQueryService, opts ...Option) *Router {
	rt := &Router{cfg: cfg, ingest: ingest, query: query}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/stats", rt.stats)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("POST /v1/documents/reload", rt.reloadLibrary)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = requestTimeoutMiddleware(handler, time.Duration(rt.cfg.APIRequestTimeoutSec)*time.Second)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond, rt.onReject)
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := max(rt.cfg.APIRateLimitBurst, 1)
		handler = rateLimitMiddleware(handler, rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst), rt.onReject)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.query.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes)
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "uploaded file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	name, err := rt.ingest.SaveToLibrary(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.cfg.IngestAsync && rt.publisher != nil {
		if err := rt.publisher.PublishIngestRequest(r.Context(), name); err != nil {
			writeError(w, r, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordQueued()
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"filename": name, "status": "queued"})
		return
	}

	report, err := rt.ingest.IngestFiles(r.Context(), []string{name})
	rt.recordReport(report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(report.Failures) > 0 {
		writeJSON(w, failureStatus(report.Failures[0].Kind), map[string]any{
			"error":  report.Failures[0].Error,
			"report": report,
		})
		return
	}
	if len(report.Results) == 1 && report.Results[0].Skipped {
		err := report.Results[0].SkipErr()
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) reloadLibrary(w http.ResponseWriter, r *http.Request) {
	report, err := rt.ingest.IngestLibrary(r.Context())
	rt.recordReport(report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	results, err := rt.query.Search(r.Context(), req.Query, rt.limit(req.Limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("search", len(results), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Limit    int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.Question, rt.limit(req.Limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("rag_query", len(answer.Sources), time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) limit(requested int) int {
	if requested > 0 {
		return requested
	}
	return rt.cfg.RAGTopK
}

func (rt *Router) observeRAG(endpoint string, sources int, took time.Duration) {
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(endpoint, sources, took)
	}
}

func (rt *Router) recordReport(report domain.BatchReport) {
	if rt.metrics != nil {
		rt.metrics.RecordIngestReport(report)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
