package loan

import (
	"fmt"
	"time"

	"lending-engine/internal/pkg/apperrors"
)

type Money = float64

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusDisbursed  Status = "DISBURSED"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
	StatusError      Status = "ERROR"
)

// ExclusionError marks loans that failed for system reasons rather than a
// scoring decision.
const ExclusionError = "Error"

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusApproved,
	StatusDisbursed,
	StatusCompleted,
	StatusRejected,
	StatusCanceled,
	StatusError,
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusApproved, StatusRejected, StatusError, StatusCanceled},
	StatusApproved:   {StatusDisbursed, StatusCanceled},
	StatusDisbursed:  {StatusCompleted, StatusCanceled},
}

// IsActive reports whether a loan in this status blocks new loan requests
// for the same customer.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusDisbursed:
		return true
	}
	return false
}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveStatuses returns the statuses for which IsActive is true.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusApproved, StatusDisbursed}
}

type Loan struct {
	ID              string
	CustomerNumber  string
	Amount          Money
	Status          Status
	Score           *int
	Limit           *Money
	Exclusion       string
	ExclusionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DisbursedAt     *time.Time
	CompletedAt     *time.Time
}

// NewLoan validates the request and returns a PENDING record stamped at now.
// The ID is assigned by the ledger.
func NewLoan(customerNumber string, amount Money, now time.Time) (*Loan, error) {
	if customerNumber == "" {
		return nil, fmt.Errorf("%w: customer number cannot be empty", apperrors.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", apperrors.ErrInvalidArgument)
	}
	return &Loan{
		CustomerNumber: customerNumber,
		Amount:         amount,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Clone returns a deep copy so callers never share pointers with the ledger.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	c := *l
	if l.Score != nil {
		v := *l.Score
		c.Score = &v
	}
	if l.Limit != nil {
		v := *l.Limit
		c.Limit = &v
	}
	if l.DisbursedAt != nil {
		v := *l.DisbursedAt
		c.DisbursedAt = &v
	}
	if l.CompletedAt != nil {
		v := *l.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// NextUpdatedAt returns now, or the smallest instant after prev that storage
// can represent, so UpdatedAt strictly increases across writes.
func NextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}
