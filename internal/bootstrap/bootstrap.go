package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
	"github.com/scuola-sindacato/assistente/internal/core/usecase"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/backup/jsonl"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/chunking"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/classifier/filename"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/embedding/hashing"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/extractor/docx"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/extractor/pdf"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/extractor/plaintext"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/extractor/router"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/extractor/spreadsheet"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/llm/ollama"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/queue/nats"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/repository/postgres"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/resilience"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/storage/localfs"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/vector/memory"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/vector/pgvector"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/vector/qdrant"
	"github.com/scuola-sindacato/assistente/internal/seed"
)

type App struct {
	Config config.Config

	IngestUC *usecase.IngestDocumentUseCase
	QueryUC  *usecase.QueryUseCase
	Chunker  *chunking.Splitter
	Library  ports.DocumentLibrary
	// Queue is nil unless NATS_URL is set.
	Queue ports.IngestQueue

	closeFns []func()
}

type Options struct {
	// Observer receives retry and breaker events of every collaborator.
	Observer resilience.Observer
	// RequireQueue makes NATS_URL mandatory.
	RequireQueue bool
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.RequireQueue && cfg.NATSURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "bootstrap", fmt.Errorf("NATS_URL is required"))
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience(), opts.Observer)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
	}

	library, err := localfs.New(cfg.DocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("init document library: %w", err)
	}
	app.Library = library

	chunker, err := chunking.NewSplitter(cfg.Chunking())
	if err != nil {
		return nil, err
	}
	app.Chunker = chunker

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)

	var embedder ports.Embedder
	switch cfg.EmbedderBackend {
	case config.EmbedderOllama:
		embedder = ollama.NewEmbedder(ollamaClient)
	default:
		embedder = hashing.New(cfg.HashingDimension)
	}

	var store ports.VectorStore
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		store = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey, executor)
	case config.VectorBackendPgvector:
		store = pgvector.NewStore(db)
	default:
		store = memory.NewStore()
	}

	deps := usecase.IngestDeps{
		Library:    library,
		Extractor:  NewExtractor(cfg),
		Classifier: filename.NewClassifier(),
		Chunker:    chunker,
		Embedder:   embedder,
		Store:      store,
	}
	if cfg.BackupPath != "" {
		backup, err := jsonl.New(cfg.BackupPath)
		if err != nil {
			return nil, fmt.Errorf("init chunk backup: %w", err)
		}
		deps.Backup = backup
	}
	if db != nil {
		ledger := postgres.NewIngestionLedger(db)
		if err := ledger.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure ingestion ledger schema: %w", err)
		}
		deps.Ledger = ledger
	}

	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init ingest queue: %w", err)
		}
		app.Queue = queue
		app.onClose(queue.Close)
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(deps, usecase.IngestOptions{
		MinContentLength: cfg.MinContentLength,
		SkipUnchanged:    cfg.SkipUnchanged,
	})
	app.QueryUC = usecase.NewQueryUseCase(
		usecase.NewRetrievalUseCase(embedder, store),
		ollama.NewGenerator(ollamaClient),
		cfg.RAGTopK,
	)

	ok = true
	return app, nil
}

// NewExtractor dispatches to the text extractor of each supported file type.
func NewExtractor(cfg config.Config) *router.Router {
	return router.New(map[domain.DocumentType]ports.TextExtractor{
		domain.DocumentTypePDF:  pdf.NewExtractor(),
		domain.DocumentTypeDOCX: docx.NewExtractor(),
		domain.DocumentTypeTXT:  plaintext.NewExtractor(cfg.LegacyTextFallback),
		domain.DocumentTypeXLSX: spreadsheet.NewExtractor(),
	})
}

// LoadOnStartup indexes the seed dataset and then every file of the document
// library. Per-document problems end up in the report; only cancellation and
// an unreadable library are returned as errors.
func (a *App) LoadOnStartup(ctx context.Context) (domain.BatchReport, error) {
	var report domain.BatchReport
	if a.Config.SeedEnabled {
		docs, err := seed.Documents()
		if err != nil {
			return report, err
		}
		seedReport, err := a.IngestUC.IngestBatch(ctx, docs)
		report.Merge(seedReport)
		if err != nil {
			return report, err
		}
	}

	libraryReport, err := a.IngestUC.IngestLibrary(ctx)
	report.Merge(libraryReport)
	if err != nil {
		return report, err
	}

	slog.Info("startup_load_completed",
		"processed", len(report.Processed),
		"skipped", len(report.Results)-len(report.Processed),
		"failed", len(report.Failures),
		"chunks_added", report.ChunksAdded,
	)
	return report, nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
