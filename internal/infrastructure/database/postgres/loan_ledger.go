package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lending-engine/internal/clock"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

const uniqueViolation = "23505"

const loanColumns = `id, customer_number, amount, status, score, credit_limit, exclusion, exclusion_reason,
        created_at, updated_at, disbursed_at, completed_at`

const (
	insertLoanSQL = `
        INSERT INTO loans (` + loanColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	selectLoanSQL = `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1`

	selectLoanForUpdateSQL = selectLoanSQL + `
        FOR UPDATE`

	selectCustomerLoansSQL = `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_number = $1
        ORDER BY created_at DESC, id DESC`

	hasActiveLoanSQL = `
        SELECT EXISTS (
            SELECT 1 FROM loans
            WHERE customer_number = $1
              AND status IN ('PENDING', 'PROCESSING', 'APPROVED', 'DISBURSED')
        )`

	updateLoanSQL = `
        UPDATE loans
        SET amount = $2, status = $3, score = $4, credit_limit = $5, exclusion = $6,
            exclusion_reason = $7, updated_at = $8, disbursed_at = $9, completed_at = $10
        WHERE id = $1`

	countByStatusSQL = `
        SELECT status, COUNT(*)
        FROM loans
        GROUP BY status`
)

type LoanLedger struct {
	db     DBPool
	clock  clock.Clock
	logger *slog.Logger
}

var _ loan.Ledger = (*LoanLedger)(nil)

func NewLoanLedger(db DBPool, clk clock.Clock, logger *slog.Logger) *LoanLedger {
	if db == nil {
		panic("DBPool cannot be nil for LoanLedger")
	}
	return &LoanLedger{db: db, clock: clk, logger: logger.With("component", "PostgresLoanLedger")}
}

func (r *LoanLedger) Create(ctx context.Context, customerNumber string, amount loan.Money) (*loan.Loan, error) {
	now := r.clock.Now()
	l, err := loan.NewLoan(customerNumber, amount, now)
	if err != nil {
		return nil, err
	}
	l.ID = loan.NewID(now)

	start := time.Now()
	_, err = r.db.Exec(ctx, insertLoanSQL, insertArgs(l)...)
	monitoring.RecordDBQuery("CreateLoan", queryStatus(err), time.Since(start))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: customer %s", apperrors.ErrActiveLoanExists, customerNumber)
		}
		r.logger.ErrorContext(ctx, "Failed to insert loan", slog.Any("error", err))
		return nil, apperrors.WrapDatabaseError(err, "failed to insert loan")
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", l.ID)
	return l, nil
}

func (r *LoanLedger) Get(ctx context.Context, loanID string) (*loan.Loan, error) {
	start := time.Now()
	l, err := scanLoan(r.db.QueryRow(ctx, selectLoanSQL, loanID))
	monitoring.RecordDBQuery("GetLoan", queryStatus(err), time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, apperrors.WrapDatabaseError(err, "failed to get loan")
	}
	return l, nil
}

func (r *LoanLedger) ListForCustomer(ctx context.Context, customerNumber string) ([]*loan.Loan, error) {
	start := time.Now()
	rows, err := r.db.Query(ctx, selectCustomerLoansSQL, customerNumber)
	if err != nil {
		monitoring.RecordDBQuery("ListCustomerLoans", "error", time.Since(start))
		r.logger.ErrorContext(ctx, "Failed to query customer loans", "customer_number", customerNumber, "error", err)
		return nil, apperrors.WrapDatabaseError(err, "failed to list loans")
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			monitoring.RecordDBQuery("ListCustomerLoans", "error", time.Since(start))
			return nil, apperrors.WrapDatabaseError(err, "failed to scan loan")
		}
		loans = append(loans, l)
	}
	err = rows.Err()
	monitoring.RecordDBQuery("ListCustomerLoans", queryStatus(err), time.Since(start))
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err, "failed to iterate loans")
	}
	return loans, nil
}

func (r *LoanLedger) HasActiveLoan(ctx context.Context, customerNumber string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, hasActiveLoanSQL, customerNumber).Scan(&exists); err != nil {
		r.logger.ErrorContext(ctx, "Failed to check active loan", "customer_number", customerNumber, "error", err)
		return false, apperrors.WrapDatabaseError(err, "failed to check active loan")
	}
	return exists, nil
}

// Update locks the row, applies mutate and writes the result in one
// transaction.
func (r *LoanLedger) Update(ctx context.Context, loanID string, mutate loan.Mutator) (*loan.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, apperrors.WrapDatabaseError(err, "failed to begin transaction")
	}
	defer r.rollback(ctx, tx)

	current, err := scanLoan(tx.QueryRow(ctx, selectLoanForUpdateSQL, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
		}
		return nil, apperrors.WrapDatabaseError(err, "failed to lock loan")
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CustomerNumber = current.CustomerNumber
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = loan.NextUpdatedAt(current.UpdatedAt, r.clock.Now())

	if _, err := tx.Exec(ctx, updateLoanSQL,
		next.ID, next.Amount, string(next.Status), next.Score, next.Limit, next.Exclusion,
		next.ExclusionReason, next.UpdatedAt, next.DisbursedAt, next.CompletedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: customer %s", apperrors.ErrActiveLoanExists, next.CustomerNumber)
		}
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", loanID, "error", err)
		return nil, apperrors.WrapDatabaseError(err, "failed to update loan")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return nil, apperrors.WrapDatabaseError(err, "failed to commit loan update")
	}
	return next, nil
}

func (r *LoanLedger) Seed(ctx context.Context, loans ...*loan.Loan) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to begin transaction")
	}
	defer r.rollback(ctx, tx)

	for _, l := range loans {
		if l.ID == "" {
			l = l.Clone()
			l.ID = loan.NewID(l.CreatedAt)
		}
		if _, err := tx.Exec(ctx, insertLoanSQL, insertArgs(l)...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: loan %s", apperrors.ErrAlreadyExists, l.ID)
			}
			return apperrors.WrapDatabaseError(err, "failed to seed loan")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.WrapDatabaseError(err, "failed to commit seeded loans")
	}
	return nil
}

func (r *LoanLedger) CountByStatus(ctx context.Context) (map[loan.Status]int, error) {
	rows, err := r.db.Query(ctx, countByStatusSQL)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err, "failed to count loans")
	}
	defer rows.Close()

	counts := make(map[loan.Status]int)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.WrapDatabaseError(err, "failed to scan loan count")
		}
		counts[loan.Status(status)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapDatabaseError(err, "failed to iterate loan counts")
	}
	return counts, nil
}

func (r *LoanLedger) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}

func insertArgs(l *loan.Loan) []any {
	return []any{
		l.ID, l.CustomerNumber, l.Amount, string(l.Status), l.Score, l.Limit, l.Exclusion, l.ExclusionReason,
		l.CreatedAt, l.UpdatedAt, l.DisbursedAt, l.CompletedAt,
	}
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var (
		l      loan.Loan
		status string
	)
	err := row.Scan(
		&l.ID, &l.CustomerNumber, &l.Amount, &status, &l.Score, &l.Limit, &l.Exclusion, &l.ExclusionReason,
		&l.CreatedAt, &l.UpdatedAt, &l.DisbursedAt, &l.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = loan.Status(status)
	return &l, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func queryStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
