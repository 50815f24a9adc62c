package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

type storeFake struct {
	chunks  []domain.Chunk
	vectors [][]float32

	addCalls int
	addErr   error
	countErr error
	queryErr error
}

func (f *storeFake) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks = append(f.chunks, chunks...)
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *storeFake) Query(_ context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]domain.RetrievedChunk, 0, len(f.chunks))
	for i, c := range f.chunks {
		out = append(out, domain.RetrievedChunk{ID: c.ID, Text: c.Text, Metadata: c.Metadata, Score: dot(f.vectors[i], vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *storeFake) Count(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.chunks), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if i < len(b) {
			sum += float64(a[i] * b[i])
		}
	}
	return sum
}

// embedderFake returns one-dimensional vectors equal to the text length.
type embedderFake struct {
	embedCalls int
	queryCalls int
	lastBatch  []string
	err        error
	short      bool
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	f.lastBatch = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t))})
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1}, nil
}

type classifierFake struct{}

func (classifierFake) Classify(name string) domain.Category {
	if strings.Contains(strings.ToLower(name), "ccnl") {
		return domain.CategoryCCNL
	}
	return domain.CategoryGeneralDocuments
}

// chunkerFake cuts text into fixed 50-byte pieces.
type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	text = strings.TrimSpace(text)
	var out []string
	for len(text) > 50 {
		out = append(out, text[:50])
		text = text[50:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

type backupFake struct {
	written int
	err     error
}

func (f *backupFake) Write(_ context.Context, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.written += len(chunks)
	return nil
}

type ledgerFake struct {
	fingerprints map[string]string
	recorded     []domain.IngestResult
}

func (f *ledgerFake) Record(_ context.Context, result domain.IngestResult) error {
	f.recorded = append(f.recorded, result)
	if f.fingerprints == nil {
		f.fingerprints = map[string]string{}
	}
	f.fingerprints[result.Filename] = result.Fingerprint
	return nil
}

func (f *ledgerFake) LatestFingerprint(_ context.Context, filename string) (string, bool, error) {
	fp, ok := f.fingerprints[filename]
	return fp, ok, nil
}

type libraryFake struct {
	files map[string]string
	names []string
}

func (f *libraryFake) List(context.Context) ([]string, error) { return f.names, nil }

func (f *libraryFake) Open(_ context.Context, name string) (io.ReadCloser, error) {
	body, ok := f.files[name]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *libraryFake) Save(_ context.Context, name string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[name] = string(raw)
	f.names = append(f.names, name)
	return nil
}

// extractorFake fails for files whose content starts with "%CORRUPT".
type extractorFake struct{}

func (extractorFake) Extract(_ context.Context, filename string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(string(raw), "%CORRUPT") {
		return "", errors.New("malformed pdf")
	}
	return string(raw), nil
}

type generatorFake struct {
	system string
	user   string
	err    error
}

func (f *generatorFake) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return "risposta", nil
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newIngestForTest(store *storeFake, embedder *embedderFake) *IngestDocumentUseCase {
	return NewIngestDocumentUseCase(IngestDeps{
		Library:    &libraryFake{},
		Extractor:  extractorFake{},
		Classifier: classifierFake{},
		Chunker:    chunkerFake{},
		Embedder:   embedder,
		Store:      store,
	}, IngestOptions{Now: func() time.Time { return fixedNow }})
}

func textOfLength(n int) string {
	return strings.Repeat("c", n)
}
