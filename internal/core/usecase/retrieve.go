package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
)

type RetrievalUseCase struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewRetrievalUseCase(embedder ports.Embedder, store ports.VectorStore) *RetrievalUseCase {
	return &RetrievalUseCase{
		embedder: embedder,
		store:    store,
	}
}

// Retrieve returns at most k stored chunks ordered by descending cosine
// similarity to query. An empty index short-circuits before the embedder is
// called.
func (uc *RetrievalUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("k must be >= 1, got %d", k))
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is empty"))
	}

	count, err := uc.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaborator, "embed query", err)
	}

	results, err := uc.store.Query(ctx, vector, k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaborator, "query vector store", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (uc *RetrievalUseCase) Count(ctx context.Context) (int, error) {
	count, err := uc.store.Count(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.ErrCollaborator, "count stored chunks", err)
	}
	return count, nil
}
