package domain

import (
	"errors"
	"testing"
)

func TestDocumentTypeFromFilename(t *testing.T) {
	cases := map[string]DocumentType{
		"CCNL_2018.PDF":    DocumentTypePDF,
		"delibera.docx":    DocumentTypeDOCX,
		"note.txt":         DocumentTypeTXT,
		"graduatorie.xlsx": DocumentTypeXLSX,
	}
	for name, want := range cases {
		got, ok := DocumentTypeFromFilename(name)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s (%v)", name, want, got, ok)
		}
	}
	if _, ok := DocumentTypeFromFilename("scan.png"); ok {
		t.Fatalf("png must not be ingestible")
	}
}

func TestBatchReportAccounting(t *testing.T) {
	var report BatchReport
	report.AddResult(IngestResult{Filename: "a.pdf", ChunksAdded: 3})
	report.AddResult(IngestResult{Filename: "b.txt", Skipped: true, Reason: "too short"})

	var other BatchReport
	other.AddResult(IngestResult{Filename: "c.docx", ChunksAdded: 2})
	other.AddFailure("d.pdf", FailureExtraction, errors.New("malformed"))
	report.Merge(other)

	if report.ChunksAdded != 5 || len(report.Results) != 3 || len(report.Processed) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Processed[1] != "c.docx" || report.Failures[0].Error != "malformed" {
		t.Fatalf("unexpected merge order %+v", report)
	}
}

func TestFingerprintIsStable(t *testing.T) {
	a := Fingerprint("Art. 13 - Ferie")
	if a != Fingerprint("Art. 13 - Ferie") || a == Fingerprint("Art. 14 - Ferie") || len(a) != 64 {
		t.Fatalf("unexpected fingerprint %q", a)
	}
}

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrCollaborator, "embed chunks", cause)
	if !IsKind(err, ErrCollaborator) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause in chain, got %v", err)
	}
	if WrapError(ErrCollaborator, "noop", nil) != nil {
		t.Fatalf("nil cause must stay nil")
	}
}

func TestSkipErr(t *testing.T) {
	if (IngestResult{Filename: "a.pdf"}).SkipErr() != nil {
		t.Fatalf("indexed result must not carry a skip error")
	}
	err := IngestResult{Filename: "a.pdf", Skipped: true, Reason: "chunking produced zero chunks"}.SkipErr()
	if !IsKind(err, ErrSkippable) {
		t.Fatalf("expected skippable kind, got %v", err)
	}
}
