package ports

import (
	"context"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// DocumentIngestor is the inbound contract for building the index.
type DocumentIngestor interface {
	Ingest(ctx context.Context, doc domain.SourceDocument) (domain.IngestResult, error)
	IngestBatch(ctx context.Context, docs []domain.SourceDocument) (domain.BatchReport, error)
	IngestFiles(ctx context.Context, filenames []string) (domain.BatchReport, error)
	IngestLibrary(ctx context.Context) (domain.BatchReport, error)
}

// DocumentQueryService is the inbound contract for retrieval and answers.
type DocumentQueryService interface {
	Search(ctx context.Context, query string, limit int) ([]domain.RetrievedChunk, error)
	Answer(ctx context.Context, question string, limit int) (*domain.Answer, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}
