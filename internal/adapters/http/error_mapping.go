package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrExtraction), domain.IsKind(err, domain.ErrSkippable):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func failureStatus(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureExtraction:
		return http.StatusUnprocessableEntity
	case domain.FailureCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
