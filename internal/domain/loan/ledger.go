package loan

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Mutator applies a change to a private copy of a loan inside Ledger.Update.
// Returning an error aborts the update and leaves the stored record untouched.
type Mutator func(l *Loan) error

// Ledger is the authoritative store of loan records. Implementations must be
// safe for concurrent use and must hand out copies, never stored pointers.
type Ledger interface {
	// Create stores a new PENDING loan. It fails with apperrors.ErrActiveLoanExists
	// when the customer already holds an active loan.
	Create(ctx context.Context, customerNumber string, amount Money) (*Loan, error)

	// Get returns apperrors.ErrNotFound when the loan does not exist.
	Get(ctx context.Context, loanID string) (*Loan, error)

	// ListForCustomer returns the customer's loans, newest first.
	ListForCustomer(ctx context.Context, customerNumber string) ([]*Loan, error)

	HasActiveLoan(ctx context.Context, customerNumber string) (bool, error)

	// Update is the only write path after creation. UpdatedAt is refreshed so
	// that it strictly increases.
	Update(ctx context.Context, loanID string, mutate Mutator) (*Loan, error)

	// Seed inserts fully formed records as-is (historical or demo data).
	Seed(ctx context.Context, loans ...*Loan) error

	CountByStatus(ctx context.Context) (map[Status]int, error)
}

const idPrefix = "LOAN"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID allocates a loan identifier from the creation time plus a random
// component. IDs generated by one process are strictly increasing.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return idPrefix + ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
