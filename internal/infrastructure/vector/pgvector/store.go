package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

const undefinedTable = "42P01"

// Store keeps chunks in a Postgres table with a pgvector embedding column.
// The table is created on the first Add, once the vector dimension is known.
type Store struct {
	db *sql.DB

	schemaMu  sync.Mutex
	dimension int
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx, len(vectors[0])); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, chunk := range chunks {
		meta := chunk.Metadata
		_, err := tx.ExecContext(ctx, `
INSERT INTO school_chunks (
	id, text, filename, document_type, category, chunk_index, total_chunks, fingerprint, ingested_at, embedding
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			chunk.ID, chunk.Text, meta.Filename, string(meta.DocumentType), string(meta.Category),
			meta.ChunkIndex, meta.TotalChunks, meta.Fingerprint, meta.IngestedAt, pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, filename, document_type, category, chunk_index, total_chunks, fingerprint, ingested_at,
	1 - (embedding <=> $1) AS score
FROM school_chunks
ORDER BY embedding <=> $1, seq
LIMIT $2
`, pgvector.NewVector(vector), limit)
	if err != nil {
		if isUndefinedTable(err) {
			return []domain.RetrievedChunk{}, nil
		}
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var (
			r       domain.RetrievedChunk
			docType string
			cat     string
		)
		if err := rows.Scan(
			&r.ID, &r.Text, &r.Metadata.Filename, &docType, &cat, &r.Metadata.ChunkIndex,
			&r.Metadata.TotalChunks, &r.Metadata.Fingerprint, &r.Metadata.IngestedAt, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		r.Metadata.DocumentType = domain.DocumentType(docType)
		r.Metadata.Category = domain.Category(cat)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM school_chunks`).Scan(&n); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (s *Store) ensureSchema(ctx context.Context, dimension int) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.dimension == dimension {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS school_chunks (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	filename TEXT NOT NULL,
	document_type TEXT NOT NULL,
	category TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	fingerprint TEXT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_school_chunks_filename ON school_chunks(filename);
`, dimension)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	s.dimension = dimension
	return nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
