package usecase

import (
	"fmt"
	"strings"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// Compose builds the grounding context handed to the language model and the
// matching source attributions, in retrieval order.
func Compose(results []domain.RetrievedChunk) (string, []domain.SourceAttribution) {
	if len(results) == 0 {
		return domain.NoDocumentsContext, []domain.SourceAttribution{}
	}

	blocks := make([]string, 0, len(results))
	sources := make([]domain.SourceAttribution, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s - %s]\n%s", i+1, r.Metadata.Filename, r.Metadata.Category, r.Text))
		sources = append(sources, domain.SourceAttribution{
			Filename: r.Metadata.Filename,
			Category: r.Metadata.Category,
			Position: domain.ChunkPosition(r.Metadata),
			Score:    r.Score,
		})
	}
	return strings.Join(blocks, "\n\n"), sources
}
