package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

func TestIngestLibraryContinuesAfterCorruptFile(t *testing.T) {
	store := &storeFake{}
	uc := newIngestForTest(store, &embedderFake{})
	uc.deps.Library = &libraryFake{
		names: []string{"CCNL_2018.pdf", "rotto.pdf", "foto.png", "circolare.txt"},
		files: map[string]string{
			"CCNL_2018.pdf": textOfLength(130),
			"rotto.pdf":     "%CORRUPT" + textOfLength(200),
			"circolare.txt": textOfLength(101),
		},
	}

	report, err := uc.IngestLibrary(context.Background())
	if err != nil {
		t.Fatalf("IngestLibrary() error = %v", err)
	}

	if len(report.Processed) != 2 || report.Processed[0] != "CCNL_2018.pdf" || report.Processed[1] != "circolare.txt" {
		t.Fatalf("unexpected processed list: %v", report.Processed)
	}
	if len(report.Failures) != 1 || report.Failures[0].Filename != "rotto.pdf" || report.Failures[0].Kind != domain.FailureExtraction {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if len(report.Results) != 3 || !report.Results[1].Skipped || report.Results[1].Reason != reasonUnsupported {
		t.Fatalf("expected unsupported png to be skipped: %+v", report.Results)
	}
	if got, _ := store.Count(context.Background()); got != 6 {
		t.Fatalf("expected 6 chunks, got %d", got)
	}
	if report.Results[0].DocumentType != domain.DocumentTypePDF || report.Results[2].DocumentType != domain.DocumentTypeTXT {
		t.Fatalf("unexpected document types: %+v", report.Results)
	}
}

func TestIngestFilesReportsMissingFileAsExtractionFailure(t *testing.T) {
	uc := newIngestForTest(&storeFake{}, &embedderFake{})

	report, err := uc.IngestFiles(context.Background(), []string{"sparito.docx"})
	if err != nil {
		t.Fatalf("IngestFiles() error = %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Kind != domain.FailureExtraction {
		t.Fatalf("expected extraction failure, got %+v", report.Failures)
	}
}

func TestIngestFilesReportsCollaboratorFailure(t *testing.T) {
	uc := newIngestForTest(&storeFake{addErr: errors.New("connection refused")}, &embedderFake{})
	uc.deps.Library = &libraryFake{files: map[string]string{
		"a.txt": textOfLength(150),
		"b.txt": textOfLength(150),
	}}

	report, err := uc.IngestFiles(context.Background(), []string{"a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("IngestFiles() error = %v", err)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("expected both files to fail, got %+v", report.Failures)
	}
	for _, f := range report.Failures {
		if f.Kind != domain.FailureCollaborator {
			t.Fatalf("expected collaborator failure, got %s", f.Kind)
		}
	}
}

func TestIngestFilesStopsOnCanceledContext(t *testing.T) {
	uc := newIngestForTest(&storeFake{}, &embedderFake{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.IngestFiles(ctx, []string{"a.txt"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
