package spreadsheet

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

func TestExtractFlattensRows(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	rows := [][]any{
		{"Posizione", "Cognome", "Punteggio"},
		{1, "Rossi", 87.5},
		{2, "Bianchi", 80},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := book.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	text, err := NewExtractor().Extract(context.Background(), "graduatoria.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Sheet1\nPosizione | Cognome | Punteggio\n1 | Rossi | 87.5\n2 | Bianchi | 80\n"
	if text != want {
		t.Fatalf("Extract() = %q, want %q", text, want)
	}
}

func TestExtractRejectsInvalidWorkbook(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "rotto.xlsx", strings.NewReader("not a workbook"))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}
