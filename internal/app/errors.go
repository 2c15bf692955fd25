package app

import (
	"errors"
	"fmt"
	"net/http"

	"simscore/api/internal/analysis"
	"simscore/api/internal/cache"
	"simscore/api/internal/cluster"
	"simscore/api/internal/geometry"
	"simscore/api/internal/model"
	"simscore/api/internal/normalize"
	"simscore/api/internal/rating"
	"simscore/api/internal/store"
	"simscore/api/internal/view"
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

// LoadStatusOf classifies the outcome of a session load.
func LoadStatusOf(err error) LoadStatus {
	var transport *analysis.TransportError
	switch {
	case err == nil:
		return StatusLoaded
	case errors.Is(err, analysis.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return StatusNotFound
	case errors.As(err, &transport):
		return StatusNoData
	}
	return ""
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var structural *model.StructuralError
	if errors.As(err, &structural) {
		return http.StatusUnprocessableEntity, "STRUCTURAL_DATA", structural.Error(), map[string]any{
			"component": structural.Component,
			"field":     structural.Field,
		}
	}

	var transport *analysis.TransportError
	switch {
	case errors.Is(err, model.ErrStructural), errors.Is(err, normalize.ErrUnknownShape):
		return http.StatusUnprocessableEntity, "STRUCTURAL_DATA", err.Error(), nil
	case errors.Is(err, analysis.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "No session found", map[string]any{"status": StatusNotFound}
	case errors.As(err, &transport):
		return http.StatusBadGateway, "NO_DATA", "Analysis service unavailable", map[string]any{"status": StatusNoData, "op": transport.Op}
	case errors.Is(err, view.ErrItemNotFound):
		return http.StatusNotFound, "ITEM_NOT_FOUND", "Idea not found", nil
	case errors.Is(err, rating.ErrInvalidValue):
		return http.StatusUnprocessableEntity, "INVALID_RATING", "rating must be between 1 and 5", nil
	case errors.Is(err, cluster.ErrCrossBucket), errors.Is(err, cluster.ErrUnknownBucket), errors.Is(err, cluster.ErrUnknownItem):
		return http.StatusUnprocessableEntity, "INVALID_MOVE", err.Error(), nil
	case errors.Is(err, geometry.ErrNodeNotFound):
		return http.StatusNotFound, "NODE_NOT_FOUND", "Selected node not found", nil
	case errors.Is(err, cache.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, "CACHE_FULL", "Session cache is full", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
