package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "With Code",
			appError: &AppError{
				Code:    "TEST_CODE",
				Message: "This is a test error",
			},
			expected: "[TEST_CODE] This is a test error",
		},
		{
			name: "Without Code",
			appError: &AppError{
				Message: "This is a test error without code",
			},
			expected: "This is a test error without code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.appError.Error()
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapDatabaseError(cause, "failed to load loan")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[DB_ERROR] failed to load loan", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("amount", "must be positive")

	var ve *ValidationError
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "amount", ve.Field)
	assert.Contains(t, err.Error(), "validation failed for field 'amount': must be positive")
}

func TestIsPrecondition(t *testing.T) {
	assert.True(t, IsPrecondition(fmt.Errorf("%w: customer 1", ErrNotSubscribed)))
	assert.True(t, IsPrecondition(fmt.Errorf("%w (loan LOAN1)", ErrActiveLoanExists)))
	assert.True(t, IsPrecondition(ErrInvalidArgument))
	assert.False(t, IsPrecondition(ErrGatewayUnavailable))
	assert.False(t, IsPrecondition(nil))
}
