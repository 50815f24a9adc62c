package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

func newLedgerWithMock(t *testing.T) (*IngestionLedger, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewIngestionLedger(db), mock, func() { _ = db.Close() }
}

func TestRecordInsertsIngestion(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO document_ingestions").
		WithArgs("CCNL_2018.pdf", "PDF", "CCNL Scuola", "abc", 12, "doc_0", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := ledger.Record(context.Background(), domain.IngestResult{
		Filename:     "CCNL_2018.pdf",
		DocumentType: domain.DocumentTypePDF,
		Category:     domain.CategoryCCNL,
		Fingerprint:  "abc",
		ChunksAdded:  12,
		FirstChunkID: "doc_0",
		IngestedAt:   at,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordIgnoresSkippedResults(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	if err := ledger.Record(context.Background(), domain.IngestResult{Filename: "a.txt", Skipped: true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestFingerprintNotFound(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT fingerprint").WithArgs("nuovo.pdf").WillReturnError(sql.ErrNoRows)

	_, found, err := ledger.LatestFingerprint(context.Background(), "nuovo.pdf")
	if err != nil || found {
		t.Fatalf("LatestFingerprint() found=%v err=%v", found, err)
	}
}

func TestLatestFingerprintFound(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT fingerprint").WithArgs("CCNL_2018.pdf").
		WillReturnRows(sqlmock.NewRows([]string{"fingerprint"}).AddRow("abc"))

	fp, found, err := ledger.LatestFingerprint(context.Background(), "CCNL_2018.pdf")
	if err != nil || !found || fp != "abc" {
		t.Fatalf("LatestFingerprint() = %q, %v, %v", fp, found, err)
	}
}

func TestLatestFingerprintPropagatesErrors(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT fingerprint").WillReturnError(errors.New("connection reset"))

	if _, _, err := ledger.LatestFingerprint(context.Background(), "a.txt"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnsureSchemaRunsDDLUnderLock(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026031502)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS document_ingestions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := ledger.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
