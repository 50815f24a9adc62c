package ports

import (
	"context"
	"io"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// DocumentLibrary stores the source files that feed the index.
type DocumentLibrary interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
	Save(ctx context.Context, filename string, data io.Reader) error
}

// TextExtractor turns one source file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, body io.Reader) (string, error)
}

// DocumentClassifier derives a category label from a filename.
type DocumentClassifier interface {
	Classify(filename string) domain.Category
}

// Chunker splits text into overlapping retrievable segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text. Embed preserves order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the append-only chunk index searched by cosine similarity.
type VectorStore interface {
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
}

// Generator produces the final answer text.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChunkBackup receives a best-effort copy of every stored chunk.
type ChunkBackup interface {
	Write(ctx context.Context, chunks []domain.Chunk) error
}

// FingerprintLedger remembers which content version of a file was indexed.
type FingerprintLedger interface {
	Record(ctx context.Context, result domain.IngestResult) error
	LatestFingerprint(ctx context.Context, filename string) (string, bool, error)
}

// IngestQueue publishes/consumes library ingestion requests.
type IngestQueue interface {
	PublishIngestRequest(ctx context.Context, filename string) error
	SubscribeIngestRequests(ctx context.Context, handler func(context.Context, string) error) error
}
