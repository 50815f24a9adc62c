package usecase

import (
	"context"
	"fmt"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// IngestLibrary ingests every file currently in the document library.
func (uc *IngestDocumentUseCase) IngestLibrary(ctx context.Context) (domain.BatchReport, error) {
	names, err := uc.deps.Library.List(ctx)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("list document library: %w", err)
	}
	return uc.IngestFiles(ctx, names)
}

// IngestFiles extracts and ingests library files one by one. Unsupported
// extensions are skipped, extraction and collaborator failures are reported
// per file; only context cancellation stops the batch early.
func (uc *IngestDocumentUseCase) IngestFiles(ctx context.Context, filenames []string) (domain.BatchReport, error) {
	var report domain.BatchReport
	for _, name := range filenames {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		docType, ok := domain.DocumentTypeFromFilename(name)
		if !ok {
			report.AddResult(uc.skip(domain.IngestResult{Filename: name, IngestedAt: uc.opts.Now()}, reasonUnsupported))
			continue
		}

		text, err := uc.extractText(ctx, name)
		if err != nil {
			if isContextError(err) {
				return report, err
			}
			uc.fail(&report, name, domain.FailureExtraction, err)
			continue
		}

		res, err := uc.Ingest(ctx, domain.SourceDocument{Filename: name, Type: docType, Text: text})
		if err != nil {
			if isContextError(err) {
				return report, err
			}
			uc.fail(&report, name, domain.FailureCollaborator, err)
			continue
		}
		report.AddResult(res)
	}
	return report, nil
}

func (uc *IngestDocumentUseCase) extractText(ctx context.Context, filename string) (string, error) {
	reader, err := uc.deps.Library.Open(ctx, filename)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open source document", err)
	}
	defer reader.Close()

	text, err := uc.deps.Extractor.Extract(ctx, filename, reader)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtraction) || isContextError(err) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	return text, nil
}
