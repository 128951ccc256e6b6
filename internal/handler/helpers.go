package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, domain.NewErrorEnvelope(err))
}

// statusForError maps the domain error taxonomy to HTTP status codes.
// Validation problems are the caller's fault; everything else reflects the
// state of the backend.
func statusForError(err error) int {
	var validation *domain.ErrValidation
	var connection *domain.ErrConnection
	var timeout *domain.ErrTimeout
	var upstream *domain.ErrUpstream
	var circuitOpen *domain.ErrCircuitOpen

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &connection):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.As(err, &circuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := statusForError(err)
	switch status {
	case http.StatusBadRequest:
		logger.Debug("validation error", zap.String("error", err.Error()))
	case http.StatusInternalServerError:
		logger.Error("unhandled error", zap.Error(err))
	default:
		logger.Warn("backend error", zap.Error(err))
	}
	writeError(w, status, err)
}
