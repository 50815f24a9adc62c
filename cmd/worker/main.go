package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scuola-sindacato/assistente/internal/bootstrap"
	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/observability/logging"
	"github.com/scuola-sindacato/assistente/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(nil, "worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Observer: workerMetrics, RequireQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.VectorBackend == config.VectorBackendMemory {
		logger.Warn("worker_memory_index", "detail", "chunks indexed by this worker are not visible to the api process")
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := time.Duration(cfg.WorkerTimeoutMinutes) * time.Minute
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestRequests(ctx, func(handlerCtx context.Context, filename string) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartRequest()
		report, err := app.IngestUC.IngestFiles(ingestCtx, []string{filename})
		workerMetrics.FinishRequest(time.Since(start), report, err)
		if err != nil {
			return err
		}
		logger.Info("ingest_request_done",
			"filename", filename,
			"chunks_added", report.ChunksAdded,
			"failures", len(report.Failures),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
