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

	httpadapter "github.com/scuola-sindacato/assistente/internal/adapters/http"
	"github.com/scuola-sindacato/assistente/internal/bootstrap"
	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/observability/logging"
	"github.com/scuola-sindacato/assistente/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(nil, "api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Observer: httpMetrics, RequireQueue: cfg.IngestAsync})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.LoadOnStartup {
		report, err := app.LoadOnStartup(ctx)
		httpMetrics.RecordIngestReport(report)
		if err != nil {
			logger.Error("startup_load_failed", "error", err)
			os.Exit(1)
		}
	}

	opts := []httpadapter.Option{httpadapter.WithMetrics(httpMetrics)}
	if app.Queue != nil {
		opts = append(opts, httpadapter.WithPublisher(app.Queue))
	}
	router := httpadapter.NewRouter(cfg, app.IngestUC, app.QueryUC, opts...).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      time.Duration(cfg.APIRequestTimeoutSec+10) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "vector_backend", cfg.VectorBackend, "embedder", cfg.EmbedderBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
