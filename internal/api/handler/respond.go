package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/pkg/apperrors"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field, code := http.StatusInternalServerError, "An unexpected error occurred.", "", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperrors.ErrNotSubscribed):
		status, message, code = http.StatusForbidden, err.Error(), "NOT_SUBSCRIBED"
	case errors.Is(err, apperrors.ErrActiveLoanExists):
		status, message, code = http.StatusConflict, err.Error(), "ACTIVE_LOAN_EXISTS"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		status, message, code = http.StatusConflict, err.Error(), "INVALID_TRANSITION"
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrGatewayUnavailable), errors.Is(err, apperrors.ErrIdentityUnavailable):
		status, message, code = http.StatusServiceUnavailable, err.Error(), "UPSTREAM_UNAVAILABLE"
	case errors.As(err, &appErr):
		message, code = appErr.Message, appErr.Code
		slog.Default().Error("Application error", "error", err)
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}

func customerNumberFromURL(r *http.Request) (string, error) {
	customerNumber := chi.URLParam(r, "customerNumber")
	if err := dto.ValidateCustomerNumber(customerNumber); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	return customerNumber, nil
}

func loanIDFromURL(r *http.Request) (string, error) {
	loanID := chi.URLParam(r, "loanID")
	if loanID == "" {
		return "", fmt.Errorf("%w: loanID not found in URL path", apperrors.ErrInvalidArgument)
	}
	return loanID, nil
}

// logLevelFor keeps expected client errors out of the error log.
func logLevelFor(err error) slog.Level {
	if errors.Is(err, apperrors.ErrNotFound) || apperrors.IsPrecondition(err) || errors.Is(err, apperrors.ErrInvalidTransition) {
		return slog.LevelWarn
	}
	return slog.LevelError
}
