package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// Writer appends every indexed chunk to a JSON-lines file. The dump is a
// recovery aid and is never read back by the service.
type Writer struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Writer{path: path}, nil
}

type record struct {
	ID       string               `json:"id"`
	Text     string               `json:"text"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

func (w *Writer) Write(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	for _, chunk := range chunks {
		if err := enc.Encode(record{ID: chunk.ID, Text: chunk.Text, Metadata: chunk.Metadata}); err != nil {
			return fmt.Errorf("encode chunk %s: %w", chunk.ID, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush backup file: %w", err)
	}
	return f.Sync()
}
