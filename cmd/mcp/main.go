package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/scuola-sindacato/assistente/internal/adapters/mcp"
	"github.com/scuola-sindacato/assistente/internal/bootstrap"
	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLogger(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.LoadOnStartup {
		if _, err := app.LoadOnStartup(ctx); err != nil {
			logger.Error("startup_load_failed", "error", err)
			os.Exit(1)
		}
	}

	if err := server.ServeStdio(mcpadapter.NewServer(app.QueryUC, cfg.RAGTopK, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
