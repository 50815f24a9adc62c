package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// IngestionLedger records one row per successful ingestion so unchanged
// documents can be recognized on the next load.
type IngestionLedger struct {
	db *sql.DB
}

func NewIngestionLedger(db *sql.DB) *IngestionLedger {
	return &IngestionLedger{db: db}
}

func (l *IngestionLedger) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031502)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_ingestions (
	id BIGSERIAL PRIMARY KEY,
	filename TEXT NOT NULL,
	document_type TEXT NOT NULL,
	category TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	chunks_added INTEGER NOT NULL,
	first_chunk_id TEXT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_ingestions_filename ON document_ingestions(filename, ingested_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (l *IngestionLedger) Record(ctx context.Context, result domain.IngestResult) error {
	if result.Skipped {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO document_ingestions (
	filename, document_type, category, fingerprint, chunks_added, first_chunk_id, ingested_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		result.Filename, string(result.DocumentType), string(result.Category), result.Fingerprint,
		result.ChunksAdded, result.FirstChunkID, result.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}
	return nil
}

// LatestFingerprint returns the fingerprint of the most recent ingestion of
// filename; found is false when the file was never ingested.
func (l *IngestionLedger) LatestFingerprint(ctx context.Context, filename string) (string, bool, error) {
	var fingerprint string
	err := l.db.QueryRowContext(ctx, `
SELECT fingerprint
FROM document_ingestions
WHERE filename = $1
ORDER BY ingested_at DESC, id DESC
LIMIT 1
`, filename).Scan(&fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select latest fingerprint: %w", err)
	}
	return fingerprint, true, nil
}
