// Package handler exposes the HTTP API: auth, account linking, sync,
// metrics, preferences, settings, and the legacy /budget routes kept
// for older mobile clients.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleServiceError maps domain errors onto HTTP status codes.
// Unknown errors become opaque 500s; the detail stays in the log.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		notFound       *domain.ErrNotFound
		validation     *domain.ErrValidation
		unauthorized   *domain.ErrUnauthorized
		invalidCode    *domain.ErrInvalidCode
		syncInProgress *domain.ErrSyncInProgress
		circuitOpen    *domain.ErrCircuitOpen
		timeout        *domain.ErrTimeout
		external       *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &invalidCode):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &syncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.Error("unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
