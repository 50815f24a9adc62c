package spreadsheet

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// Extractor flattens workbooks such as ranking lists (graduatorie) into
// text: one line per non-empty row, cells separated by " | ", sheets
// introduced by their name.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	book, err := excelize.OpenReader(body)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open workbook", err)
	}
	defer func() {
		if err := book.Close(); err != nil {
			slog.Warn("workbook_close_failed", "filename", filename, "error", err)
		}
	}()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "read sheet "+sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			if line := joinCells(row); line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

func joinCells(row []string) string {
	cells := make([]string, 0, len(row))
	for _, cell := range row {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	return strings.Join(cells, " | ")
}
