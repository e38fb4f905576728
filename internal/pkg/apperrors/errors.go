package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")

	ErrConflict = errors.New("resource conflict")

	ErrNotSubscribed = errors.New("customer is not subscribed to the lending service")

	ErrActiveLoanExists = errors.New("customer already has an active loan")

	ErrInvalidTransition = errors.New("invalid loan status transition")

	ErrGatewayUnavailable = errors.New("scoring gateway unavailable")

	ErrInvalidResponse = errors.New("invalid response from remote service")

	ErrIdentityUnavailable = errors.New("identity data unavailable")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// IsPrecondition reports whether err is a synchronous request rejection
// (the loan was never created).
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNotSubscribed) ||
		errors.Is(err, ErrActiveLoanExists) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrValidation)
}
