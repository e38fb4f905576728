package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"lending-engine/internal/domain/loan"
	"lending-engine/internal/kyc"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) loanResult(args mock.Arguments) (*loan.Loan, error) {
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) RequestLoan(ctx context.Context, customerNumber string, amount loan.Money) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, customerNumber, amount))
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, loanID))
}

func (m *MockLoanService) GetCustomerLoans(ctx context.Context, customerNumber string) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerNumber)
	if loans, ok := args.Get(0).([]*loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLatestLoan(ctx context.Context, customerNumber string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, customerNumber))
}

func (m *MockLoanService) HasActiveLoan(ctx context.Context, customerNumber string) (bool, error) {
	args := m.Called(ctx, customerNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanService) CancelLoan(ctx context.Context, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, loanID))
}

func (m *MockLoanService) CompleteLoan(ctx context.Context, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, loanID))
}

func (m *MockLoanService) Wait(ctx context.Context, loanID string) error {
	return m.Called(ctx, loanID).Error(0)
}

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) IsSubscribed(ctx context.Context, customerNumber string) (bool, error) {
	args := m.Called(ctx, customerNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionService) Subscribe(ctx context.Context, customerNumber string) (bool, error) {
	args := m.Called(ctx, customerNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionService) Enroll(ctx context.Context, customerNumber string) (*kyc.Profile, error) {
	args := m.Called(ctx, customerNumber)
	if p, ok := args.Get(0).(*kyc.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSubscriptionService) Unsubscribe(ctx context.Context, customerNumber string) (bool, error) {
	args := m.Called(ctx, customerNumber)
	return args.Bool(0), args.Error(1)
}
