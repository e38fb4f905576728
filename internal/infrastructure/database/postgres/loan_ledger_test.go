package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/clock"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/logging"
	"lending-engine/internal/pkg/apperrors"
)

const pgxmockExpectationsNotMetMsg = "there were unfulfilled expectations"

var (
	epoch           = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	loanColumnNames = []string{
		"id", "customer_number", "amount", "status", "score", "credit_limit", "exclusion", "exclusion_reason",
		"created_at", "updated_at", "disbursed_at", "completed_at",
	}
)

func setupLedger(t *testing.T) (context.Context, *LoanLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}
	t.Cleanup(mockPool.Close)

	return context.Background(), NewLoanLedger(mockPool, clock.NewManual(epoch), logging.Discard()), mockPool
}

func loanRow(id string, status loan.Status, updatedAt time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(loanColumnNames).AddRow(
		id, "234774784", float64(5000), string(status), (*int)(nil), (*float64)(nil), "", "",
		epoch, updatedAt, (*time.Time)(nil), (*time.Time)(nil),
	)
}

func TestLoanLedger_Create(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectExec(regexp.QuoteMeta(insertLoanSQL)).
		WithArgs(pgxmock.AnyArg(), "234774784", float64(5000), "PENDING", (*int)(nil), (*float64)(nil), "", "",
			epoch, epoch, (*time.Time)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l, err := ledger.Create(ctx, "234774784", 5000)

	require.NoError(t, err)
	assert.Regexp(t, `^LOAN`, l.ID)
	assert.Equal(t, loan.StatusPending, l.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanLedger_CreateActiveLoanExists(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectExec(regexp.QuoteMeta(insertLoanSQL)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "loans_one_active_per_customer"})

	_, err := ledger.Create(ctx, "234774784", 5000)

	assert.ErrorIs(t, err, apperrors.ErrActiveLoanExists)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanLedger_GetNotFound(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanSQL)).WithArgs("LOAN1").WillReturnError(pgx.ErrNoRows)

	_, err := ledger.Get(ctx, "LOAN1")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanLedger_GetDatabaseError(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanSQL)).WithArgs("LOAN1").WillReturnError(errors.New("conn reset"))

	_, err := ledger.Get(ctx, "LOAN1")

	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}

func TestLoanLedger_Get(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanSQL)).WithArgs("LOAN1").
		WillReturnRows(loanRow("LOAN1", loan.StatusProcessing, epoch))

	l, err := ledger.Get(ctx, "LOAN1")

	require.NoError(t, err)
	assert.Equal(t, "LOAN1", l.ID)
	assert.Equal(t, loan.StatusProcessing, l.Status)
	assert.Nil(t, l.Score)
}

func TestLoanLedger_ListForCustomer(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	rows := pgxmock.NewRows(loanColumnNames).
		AddRow("LOAN2", "234774784", float64(200), "PENDING", (*int)(nil), (*float64)(nil), "", "", epoch, epoch, (*time.Time)(nil), (*time.Time)(nil)).
		AddRow("LOAN1", "234774784", float64(100), "CANCELED", (*int)(nil), (*float64)(nil), "", "", epoch, epoch, (*time.Time)(nil), (*time.Time)(nil))
	mockPool.ExpectQuery(regexp.QuoteMeta(selectCustomerLoansSQL)).WithArgs("234774784").WillReturnRows(rows)

	loans, err := ledger.ListForCustomer(ctx, "234774784")

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "LOAN2", loans[0].ID)
	assert.Equal(t, loan.StatusCanceled, loans[1].Status)
}

func TestLoanLedger_HasActiveLoan(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(hasActiveLoanSQL)).WithArgs("234774784").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := ledger.HasActiveLoan(ctx, "234774784")

	require.NoError(t, err)
	assert.True(t, active)
}

func TestLoanLedger_Update(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanForUpdateSQL)).WithArgs("LOAN1").
		WillReturnRows(loanRow("LOAN1", loan.StatusPending, epoch))
	mockPool.ExpectExec(regexp.QuoteMeta(updateLoanSQL)).
		WithArgs("LOAN1", float64(5000), "PROCESSING", (*int)(nil), (*float64)(nil), "", "",
			epoch.Add(time.Microsecond), (*time.Time)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	updated, err := ledger.Update(ctx, "LOAN1", func(l *loan.Loan) error {
		l.Status = loan.StatusProcessing
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, loan.StatusProcessing, updated.Status)
	assert.True(t, updated.UpdatedAt.After(epoch))
}

func TestLoanLedger_UpdateMutatorError(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanForUpdateSQL)).WithArgs("LOAN1").
		WillReturnRows(loanRow("LOAN1", loan.StatusRejected, epoch))
	mockPool.ExpectRollback()

	_, err := ledger.Update(ctx, "LOAN1", func(l *loan.Loan) error {
		return apperrors.ErrInvalidTransition
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanLedger_UpdateNotFound(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(selectLoanForUpdateSQL)).WithArgs("LOAN1").WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	_, err := ledger.Update(ctx, "LOAN1", func(l *loan.Loan) error { return nil })

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoanLedger_CountByStatus(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(countByStatusSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).AddRow("PENDING", int64(2)).AddRow("ERROR", int64(1)))

	counts, err := ledger.CountByStatus(ctx)

	require.NoError(t, err)
	assert.Equal(t, map[loan.Status]int{loan.StatusPending: 2, loan.StatusError: 1}, counts)
}

func TestLoanLedger_Seed(t *testing.T) {
	ctx, ledger, mockPool := setupLedger(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta(insertLoanSQL)).
		WithArgs(pgxmock.AnyArg(), "234774784", float64(15000), "COMPLETED", pgxmock.AnyArg(), pgxmock.AnyArg(), "", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	err := ledger.Seed(ctx, &loan.Loan{CustomerNumber: "234774784", Amount: 15000, Status: loan.StatusCompleted, CreatedAt: epoch, UpdatedAt: epoch})

	require.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(schemaSQL)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, Migrate(context.Background(), mockPool, logging.Discard()))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
