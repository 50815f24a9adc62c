package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

const maxPDFBytes = 200 << 20

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text of every page, one page per line block.
// Pages whose text cannot be decoded are skipped.
func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (text string, err error) {
	content, err := io.ReadAll(io.LimitReader(body, maxPDFBytes+1))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf", err)
	}
	if len(content) > maxPDFBytes {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf", fmt.Errorf("%s exceeds %d bytes", filename, maxPDFBytes))
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtraction, "parse pdf", fmt.Errorf("%s: %v", filename, r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			slog.Warn("pdf_page_skipped", "filename", filename, "page", i, "error", err)
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}
