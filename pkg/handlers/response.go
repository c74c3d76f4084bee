package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps service sentinels onto HTTP status codes with a stable
// error code for the frontend.
func WriteError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrSessionExpired):
		return ErrorResponse(w, http.StatusUnauthorized, "session_expired", err.Error())
	case errors.Is(err, apperrors.ErrNotConnected):
		return ErrorResponse(w, http.StatusUnauthorized, "not_connected", err.Error())
	case errors.Is(err, apperrors.ErrQueryBlocked):
		return ErrorResponse(w, http.StatusBadRequest, "query_blocked", err.Error())
	case errors.Is(err, apperrors.ErrInvalidIdentifier):
		return ErrorResponse(w, http.StatusBadRequest, "invalid_identifier", err.Error())
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrSnowflakeUnavailable):
		return ErrorResponse(w, http.StatusBadGateway, "snowflake_unavailable", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
