package app

import (
	"errors"
	"fmt"
	"net/http"

	"inkpad/api/internal/chunk"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/export"
	"inkpad/api/internal/history"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, docstore.ErrNotAuthenticated):
		return http.StatusUnauthorized, "NOT_AUTHENTICATED", "Sign in to continue", nil
	case errors.Is(err, docstore.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED", "You do not have access to this document", nil
	case errors.Is(err, docstore.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "Document already exists", nil
	case errors.Is(err, docstore.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Document changed since it was loaded", nil
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, history.ErrNoHistory):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, docstore.ErrValidation), errors.Is(err, chunk.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing),
		errors.Is(err, export.ErrDOCXDependencyMissing),
		errors.Is(err, export.ErrArchiveDisabled):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Server error", nil
}
