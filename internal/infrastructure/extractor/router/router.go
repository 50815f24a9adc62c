package router

import (
	"context"
	"fmt"
	"io"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
)

// Router dispatches extraction by file extension.
type Router struct {
	byType map[domain.DocumentType]ports.TextExtractor
}

func New(byType map[domain.DocumentType]ports.TextExtractor) *Router {
	return &Router{byType: byType}
}

func (r *Router) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	docType, ok := domain.DocumentTypeFromFilename(filename)
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract", fmt.Errorf("file %q", filename))
	}
	extractor, ok := r.byType[docType]
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract", fmt.Errorf("no extractor for %s", docType))
	}
	return extractor.Extract(ctx, filename, body)
}
