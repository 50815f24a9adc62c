package usecase

import (
	"context"
	"fmt"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
)

const DefaultTopK = 5

type QueryUseCase struct {
	retriever    *RetrievalUseCase
	generator    ports.Generator
	defaultLimit int
}

func NewQueryUseCase(retriever *RetrievalUseCase, generator ports.Generator, defaultLimit int) *QueryUseCase {
	if defaultLimit <= 0 {
		defaultLimit = DefaultTopK
	}
	return &QueryUseCase{
		retriever:    retriever,
		generator:    generator,
		defaultLimit: defaultLimit,
	}
}

func (uc *QueryUseCase) Search(ctx context.Context, query string, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = uc.defaultLimit
	}
	return uc.retriever.Retrieve(ctx, query, limit)
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string, limit int) (*domain.Answer, error) {
	results, err := uc.Search(ctx, question, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	groundingContext, sources := Compose(results)

	text, err := uc.generator.Generate(ctx, answerSystemPrompt, buildAnswerPrompt(question, groundingContext))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaborator, "generate answer", err)
	}

	return &domain.Answer{
		Text:    text,
		Sources: sources,
	}, nil
}

func (uc *QueryUseCase) Stats(ctx context.Context) (domain.IndexStats, error) {
	count, err := uc.retriever.Count(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{Chunks: count}, nil
}
