package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/domain/loan"
)

func TestNewLoanResponse(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("pending loan without score", func(t *testing.T) {
		response := NewLoanResponse(&loan.Loan{
			ID:             "LOAN01",
			CustomerNumber: "234774784",
			Amount:         5000,
			Status:         loan.StatusPending,
			CreatedAt:      created,
			UpdatedAt:      created,
		})

		assert.Equal(t, "LOAN01", response.ID)
		assert.Equal(t, "5000.00", response.Amount)
		assert.Equal(t, "PENDING", response.Status)
		assert.Nil(t, response.Score)
		assert.Nil(t, response.CreditLimit)
		assert.Nil(t, response.DisbursedAt)
	})

	t.Run("scored loan", func(t *testing.T) {
		score, limit := 720, loan.Money(15000.5)
		response := NewLoanResponse(&loan.Loan{
			ID:              "LOAN02",
			Amount:          60000,
			Status:          loan.StatusRejected,
			Score:           &score,
			Limit:           &limit,
			Exclusion:       "No Exclusion",
			ExclusionReason: "requested amount exceeds available limit of 15000.5",
		})

		require.NotNil(t, response.CreditLimit)
		assert.Equal(t, "15000.50", *response.CreditLimit)
		assert.Equal(t, 720, *response.Score)
		assert.Equal(t, "No Exclusion", response.Exclusion)
	})
}

func TestNewLoanListResponse(t *testing.T) {
	assert.Empty(t, NewLoanListResponse(nil))
	assert.Len(t, NewLoanListResponse([]*loan.Loan{{ID: "A"}, {ID: "B"}}), 2)
}

func TestCreateLoanRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateLoanRequest
		wantErr string
	}{
		{"valid", CreateLoanRequest{CustomerNumber: " 234774784 ", Amount: "5000"}, ""},
		{"valid cents", CreateLoanRequest{CustomerNumber: "234774784", Amount: "12.34"}, ""},
		{"valid padded amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: " 60000.00 "}, ""},
		{"bad customer", CreateLoanRequest{CustomerNumber: "abc", Amount: "5000"}, "customer number"},
		{"empty amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: ""}, "invalid numeric format"},
		{"non-numeric amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: "five"}, "invalid numeric format"},
		{"zero amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: "0"}, "greater than zero"},
		{"negative amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: "-5"}, "greater than zero"},
		{"sub-cent amount", CreateLoanRequest{CustomerNumber: "234774784", Amount: "1.005"}, "two decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, "234774784", tt.req.CustomerNumber)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCustomerNumber(t *testing.T) {
	assert.NoError(t, ValidateCustomerNumber("234774784"))
	assert.Error(t, ValidateCustomerNumber(""))
	assert.NoError(t, ValidateCustomerNumber("123456789"))
	assert.NoError(t, ValidateCustomerNumber("123456789012"))
	assert.Error(t, ValidateCustomerNumber("12345678"))
	assert.Error(t, ValidateCustomerNumber("12345"))
	assert.Error(t, ValidateCustomerNumber("1234567890123"))
	assert.Error(t, ValidateCustomerNumber("23477478x"))
}

func TestCreateLoanRequest_ParsedAmount(t *testing.T) {
	req := CreateLoanRequest{CustomerNumber: "234774784", Amount: "1234.50"}

	amount, err := req.ParsedAmount()

	require.NoError(t, err)
	assert.Equal(t, loan.Money(1234.5), amount)
}

func TestTokenRequest_Validate(t *testing.T) {
	assert.NoError(t, (&TokenRequest{Username: "ops"}).Validate())
	assert.Error(t, (&TokenRequest{Username: "  "}).Validate())
}
