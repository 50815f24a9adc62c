package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

const (
	maxDocxBytes     = 100 << 20
	documentPart     = "word/document.xml"
	maxDocumentPart  = 64 << 20
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every paragraph of the main document part,
// table cells included, one paragraph per line.
func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	content, err := io.ReadAll(io.LimitReader(body, maxDocxBytes))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read docx", err)
	}
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open docx", fmt.Errorf("%s: %w", filename, err))
	}

	for _, file := range archive.File {
		if file.Name != documentPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "open docx part", err)
		}
		defer rc.Close()
		return paragraphs(ctx, io.LimitReader(rc, maxDocumentPart))
	}
	return "", domain.WrapError(domain.ErrExtraction, "open docx", fmt.Errorf("%s has no %s", filename, documentPart))
}

func paragraphs(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		para   strings.Builder
		inText bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "parse docx xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out = append(out, para.String())
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(out, "\n"), nil
}
