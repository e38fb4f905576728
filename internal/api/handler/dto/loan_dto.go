package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lending-engine/internal/domain/loan"
)

type CreateLoanRequest struct {
	CustomerNumber string `json:"customerNumber" example:"234774784"`
	Amount         string `json:"amount" example:"5000.00"`
}

func (r *CreateLoanRequest) Validate() error {
	r.CustomerNumber = strings.TrimSpace(r.CustomerNumber)
	if err := ValidateCustomerNumber(r.CustomerNumber); err != nil {
		return err
	}
	_, err := r.ParsedAmount()
	return err
}

// ParsedAmount reads Amount as a decimal string with at most two decimal
// places.
func (r *CreateLoanRequest) ParsedAmount() (loan.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return 0, fmt.Errorf("invalid numeric format for amount %q", r.Amount)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("amount cannot have more than two decimal places")
	}
	amount, _ := d.Float64()
	return amount, nil
}

type LoanResponse struct {
	ID              string     `json:"id"`
	CustomerNumber  string     `json:"customerNumber"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	Score           *int       `json:"customerScore,omitempty"`
	CreditLimit     *string    `json:"creditLimit,omitempty"`
	Exclusion       string     `json:"exclusion,omitempty"`
	ExclusionReason string     `json:"exclusionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	DisbursedAt     *time.Time `json:"disbursedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func formatDecimalMoney(m loan.Money) string {
	return decimal.NewFromFloat(m).StringFixed(2)
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	resp := LoanResponse{
		ID:              l.ID,
		CustomerNumber:  l.CustomerNumber,
		Amount:          formatDecimalMoney(l.Amount),
		Status:          string(l.Status),
		Score:           l.Score,
		Exclusion:       l.Exclusion,
		ExclusionReason: l.ExclusionReason,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		DisbursedAt:     l.DisbursedAt,
		CompletedAt:     l.CompletedAt,
	}
	if l.Limit != nil {
		s := formatDecimalMoney(*l.Limit)
		resp.CreditLimit = &s
	}
	return resp
}

func NewLoanListResponse(loans []*loan.Loan) []LoanResponse {
	resp := make([]LoanResponse, len(loans))
	for i, l := range loans {
		resp[i] = NewLoanResponse(l)
	}
	return resp
}
