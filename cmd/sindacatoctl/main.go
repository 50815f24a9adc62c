package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(os.Stderr, "sindacatoctl", cfg.LogLevel))

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
