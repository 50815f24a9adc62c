package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
)

const (
	DefaultChunkIDPrefix    = "doc_"
	DefaultMinContentLength = 100

	reasonTooShort    = "document empty or too short"
	reasonNoChunks    = "chunking produced zero chunks"
	reasonUnsupported = "unsupported file extension"
	reasonUnchanged   = "unchanged since last ingestion"
)

type IngestDeps struct {
	Library    ports.DocumentLibrary
	Extractor  ports.TextExtractor
	Classifier ports.DocumentClassifier
	Chunker    ports.Chunker
	Embedder   ports.Embedder
	Store      ports.VectorStore

	// Optional collaborators.
	Backup ports.ChunkBackup
	Ledger ports.FingerprintLedger
}

type IngestOptions struct {
	IDPrefix         string
	MinContentLength int
	// SkipUnchanged skips documents whose fingerprint matches the ledger.
	SkipUnchanged bool
	Now           func() time.Time
}

// minContentThreshold is implemented by chunkers that own the minimum
// content length; the ingestor then follows it instead of its own option.
type minContentThreshold interface {
	MinContentLength() int
}

type IngestDocumentUseCase struct {
	deps IngestDeps
	opts IngestOptions

	// mu makes id assignment and the append one step, so ids derived from
	// the index size never collide.
	mu sync.Mutex
}

func NewIngestDocumentUseCase(deps IngestDeps, opts IngestOptions) *IngestDocumentUseCase {
	if opts.IDPrefix == "" {
		opts.IDPrefix = DefaultChunkIDPrefix
	}
	if th, ok := deps.Chunker.(minContentThreshold); ok {
		opts.MinContentLength = th.MinContentLength()
	} else if opts.MinContentLength <= 0 {
		opts.MinContentLength = DefaultMinContentLength
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &IngestDocumentUseCase{deps: deps, opts: opts}
}

// Ingest indexes one extracted document. Documents not worth indexing are
// reported through IngestResult.Skipped with a nil error; only embedding or
// storage failures are returned as errors.
func (uc *IngestDocumentUseCase) Ingest(ctx context.Context, doc domain.SourceDocument) (domain.IngestResult, error) {
	if doc.Type == "" {
		doc.Type = inferDocumentType(doc.Filename)
	}
	result := domain.IngestResult{
		Filename:     doc.Filename,
		DocumentType: doc.Type,
		IngestedAt:   uc.opts.Now(),
	}

	if utf8.RuneCountInString(strings.TrimSpace(doc.Text)) < uc.opts.MinContentLength {
		return uc.skip(result, reasonTooShort), nil
	}
	result.Fingerprint = domain.Fingerprint(doc.Text)

	if uc.opts.SkipUnchanged && uc.isUnchanged(ctx, doc.Filename, result.Fingerprint) {
		return uc.skip(result, reasonUnchanged), nil
	}

	texts := uc.deps.Chunker.Split(doc.Text)
	if len(texts) == 0 {
		return uc.skip(result, reasonNoChunks), nil
	}
	result.Category = uc.deps.Classifier.Classify(doc.Filename)

	chunks, err := uc.store(ctx, result, texts)
	if err != nil {
		return result, err
	}
	result.ChunksAdded = len(chunks)
	result.FirstChunkID = chunks[0].ID

	uc.backup(ctx, chunks)
	uc.recordFingerprint(ctx, result)

	slog.Info("document_ingested",
		"filename", result.Filename,
		"document_type", string(result.DocumentType),
		"category", string(result.Category),
		"chunks", result.ChunksAdded,
		"first_chunk_id", result.FirstChunkID,
	)
	return result, nil
}

// IngestBatch ingests already extracted documents, such as the seed dataset.
// A failing document is reported and the batch continues.
func (uc *IngestDocumentUseCase) IngestBatch(ctx context.Context, docs []domain.SourceDocument) (domain.BatchReport, error) {
	var report domain.BatchReport
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := uc.Ingest(ctx, doc)
		if err != nil {
			if isContextError(err) {
				return report, err
			}
			uc.fail(&report, doc.Filename, domain.FailureCollaborator, err)
			continue
		}
		report.AddResult(res)
	}
	return report, nil
}

// SaveToLibrary stores an uploaded file in the document library and returns
// the name it was stored under.
func (uc *IngestDocumentUseCase) SaveToLibrary(ctx context.Context, filename string, body io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if _, ok := domain.DocumentTypeFromFilename(name); !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "save to library", fmt.Errorf("file %q", filename))
	}
	if err := uc.deps.Library.Save(ctx, name, body); err != nil {
		return "", fmt.Errorf("save to document library: %w", err)
	}
	return name, nil
}

func (uc *IngestDocumentUseCase) store(ctx context.Context, result domain.IngestResult, texts []string) ([]domain.Chunk, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	chunks, err := uc.buildChunks(ctx, result, texts)
	if err != nil {
		return nil, err
	}
	vectors, err := uc.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := uc.index(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (uc *IngestDocumentUseCase) buildChunks(ctx context.Context, result domain.IngestResult, texts []string) ([]domain.Chunk, error) {
	existing, err := uc.deps.Store.Count(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaborator, "count stored chunks", err)
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:   uc.opts.IDPrefix + strconv.Itoa(existing+i),
			Text: text,
			Metadata: domain.ChunkMetadata{
				Filename:     result.Filename,
				DocumentType: result.DocumentType,
				Category:     result.Category,
				ChunkIndex:   i + 1,
				TotalChunks:  len(texts),
				Fingerprint:  result.Fingerprint,
				IngestedAt:   result.IngestedAt,
			},
		})
	}
	return chunks, nil
}

func (uc *IngestDocumentUseCase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := uc.deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaborator, "embed chunks", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrCollaborator,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	return vectors, nil
}

func (uc *IngestDocumentUseCase) index(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if err := uc.deps.Store.Add(ctx, chunks, vectors); err != nil {
		return domain.WrapError(domain.ErrCollaborator, "add chunks to vector store", err)
	}
	return nil
}

func (uc *IngestDocumentUseCase) backup(ctx context.Context, chunks []domain.Chunk) {
	if uc.deps.Backup == nil {
		return
	}
	if err := uc.deps.Backup.Write(ctx, chunks); err != nil {
		slog.Warn("backup_write_failed", "chunks", len(chunks), "error", err)
	}
}

func (uc *IngestDocumentUseCase) recordFingerprint(ctx context.Context, result domain.IngestResult) {
	if uc.deps.Ledger == nil {
		return
	}
	if err := uc.deps.Ledger.Record(ctx, result); err != nil {
		slog.Warn("fingerprint_record_failed", "filename", result.Filename, "error", err)
	}
}

func (uc *IngestDocumentUseCase) isUnchanged(ctx context.Context, filename, fingerprint string) bool {
	if uc.deps.Ledger == nil {
		return false
	}
	latest, found, err := uc.deps.Ledger.LatestFingerprint(ctx, filename)
	if err != nil {
		slog.Warn("fingerprint_lookup_failed", "filename", filename, "error", err)
		return false
	}
	return found && latest == fingerprint
}

func (uc *IngestDocumentUseCase) skip(result domain.IngestResult, reason string) domain.IngestResult {
	result.Skipped = true
	result.Reason = reason
	slog.Warn("document_skipped", "filename", result.Filename, "error", result.SkipErr())
	return result
}

func (uc *IngestDocumentUseCase) fail(report *domain.BatchReport, filename string, kind domain.FailureKind, err error) {
	slog.Error("document_failed", "filename", filename, "kind", string(kind), "error", err)
	report.AddFailure(filename, kind, err)
}

func inferDocumentType(filename string) domain.DocumentType {
	if t, ok := domain.DocumentTypeFromFilename(filename); ok {
		return t
	}
	return domain.DocumentTypeInline
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.txt"
	}
	return base
}
