// Package memory provides the volatile in-process stores used by default.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"lending-engine/internal/clock"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/pkg/apperrors"
)

type LoanLedger struct {
	mu         sync.RWMutex
	loans      map[string]*loan.Loan
	byCustomer map[string][]string
	clock      clock.Clock
	logger     *slog.Logger
}

var _ loan.Ledger = (*LoanLedger)(nil)

func NewLoanLedger(clk clock.Clock, logger *slog.Logger) *LoanLedger {
	return &LoanLedger{
		loans:      make(map[string]*loan.Loan),
		byCustomer: make(map[string][]string),
		clock:      clk,
		logger:     logger.With("component", "MemoryLoanLedger"),
	}
}

func (s *LoanLedger) Create(ctx context.Context, customerNumber string, amount loan.Money) (*loan.Loan, error) {
	now := s.clock.Now()
	l, err := loan.NewLoan(customerNumber, amount, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasActiveLocked(customerNumber) {
		return nil, fmt.Errorf("%w: customer %s", apperrors.ErrActiveLoanExists, customerNumber)
	}

	l.ID = loan.NewID(now)
	if _, exists := s.loans[l.ID]; exists {
		return nil, fmt.Errorf("%w: loan id %s", apperrors.ErrAlreadyExists, l.ID)
	}
	s.insertLocked(l)

	s.logger.DebugContext(ctx, "Loan created", slog.String("loanID", l.ID))
	return l.Clone(), nil
}

func (s *LoanLedger) Get(_ context.Context, loanID string) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
	}
	return l.Clone(), nil
}

func (s *LoanLedger) ListForCustomer(_ context.Context, customerNumber string) ([]*loan.Loan, error) {
	s.mu.RLock()
	ids := s.byCustomer[customerNumber]
	out := make([]*loan.Loan, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.loans[id].Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *LoanLedger) HasActiveLoan(_ context.Context, customerNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveLocked(customerNumber), nil
}

func (s *LoanLedger) Update(_ context.Context, loanID string, mutate loan.Mutator) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CustomerNumber = current.CustomerNumber
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = loan.NextUpdatedAt(current.UpdatedAt, s.clock.Now())

	s.loans[loanID] = next
	return next.Clone(), nil
}

func (s *LoanLedger) Seed(_ context.Context, loans ...*loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range loans {
		if l.ID == "" {
			l = l.Clone()
			l.ID = loan.NewID(l.CreatedAt)
		}
		if _, exists := s.loans[l.ID]; exists {
			return fmt.Errorf("%w: loan id %s", apperrors.ErrAlreadyExists, l.ID)
		}
		if l.Status.IsActive() && s.hasActiveLocked(l.CustomerNumber) {
			return fmt.Errorf("%w: customer %s", apperrors.ErrActiveLoanExists, l.CustomerNumber)
		}
		s.insertLocked(l.Clone())
	}
	return nil
}

func (s *LoanLedger) CountByStatus(_ context.Context) (map[loan.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[loan.Status]int, len(loan.AllStatuses))
	for _, l := range s.loans {
		counts[l.Status]++
	}
	return counts, nil
}

func (s *LoanLedger) insertLocked(l *loan.Loan) {
	s.loans[l.ID] = l
	s.byCustomer[l.CustomerNumber] = append(s.byCustomer[l.CustomerNumber], l.ID)
}

func (s *LoanLedger) hasActiveLocked(customerNumber string) bool {
	for _, id := range s.byCustomer[customerNumber] {
		if s.loans[id].Status.IsActive() {
			return true
		}
	}
	return false
}
