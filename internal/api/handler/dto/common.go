package dto

import (
	"fmt"
	"regexp"
	"strings"
)

var customerNumberPattern = regexp.MustCompile(`^[0-9]{9,12}$`)

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func (r *TokenRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// ValidateCustomerNumber checks the account number format used by the core
// banking system: digits only.
func ValidateCustomerNumber(customerNumber string) error {
	if !customerNumberPattern.MatchString(customerNumber) {
		return fmt.Errorf("customer number must be 9 to 12 digits, got %q", customerNumber)
	}
	return nil
}
