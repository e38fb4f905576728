package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lending-engine/internal/clock"
	"lending-engine/internal/event"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
	"lending-engine/internal/scoring"
)

var (
	errCanceledByRequest = errors.New("loan canceled by request")
	errShuttingDown      = errors.New("lending engine shutting down")
)

const shutdownGrace = 2 * time.Second

type LoanService interface {
	RequestLoan(ctx context.Context, customerNumber string, amount Money) (*Loan, error)

	GetLoan(ctx context.Context, loanID string) (*Loan, error)

	GetCustomerLoans(ctx context.Context, customerNumber string) ([]*Loan, error)

	GetLatestLoan(ctx context.Context, customerNumber string) (*Loan, error)

	HasActiveLoan(ctx context.Context, customerNumber string) (bool, error)

	CancelLoan(ctx context.Context, loanID string) (*Loan, error)

	CompleteLoan(ctx context.Context, loanID string) (*Loan, error)

	Wait(ctx context.Context, loanID string) error
}

type ScoreGateway interface {
	InitiateScoreQuery(ctx context.Context, customerNumber, clientToken string) (string, error)
	QueryScore(ctx context.Context, queryToken, clientToken string) (scoring.ScoreOutcome, error)
}

type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, customerNumber string) (bool, error)
}

// Policy holds the workflow timing knobs.
type Policy struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	DisbursementDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		RetryDelay:        2 * time.Second,
		DisbursementDelay: 3 * time.Second,
	}
}

type Option func(*Orchestrator)

func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		if p.MaxAttempts > 0 {
			o.policy = p
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithPublisher(p event.EventPublisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// Orchestrator drives loans through scoring, decision and disbursement. It is
// the only writer of status transitions.
type Orchestrator struct {
	ledger        Ledger
	gateway       ScoreGateway
	tokens        TokenProvider
	subscriptions SubscriptionChecker
	publisher     event.EventPublisher
	clock         clock.Clock
	policy        Policy
	tracker       *Tracker
	baseCtx       context.Context
	stop          context.CancelFunc
	logger        *slog.Logger
}

var _ LoanService = (*Orchestrator)(nil)

func NewOrchestrator(ledger Ledger, gateway ScoreGateway, tokens TokenProvider, subscriptions SubscriptionChecker, logger *slog.Logger, opts ...Option) *Orchestrator {
	baseCtx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		ledger:        ledger,
		gateway:       gateway,
		tokens:        tokens,
		subscriptions: subscriptions,
		publisher:     event.NoopPublisher{},
		clock:         clock.NewSystem(),
		policy:        DefaultPolicy(),
		tracker:       NewTracker(),
		baseCtx:       baseCtx,
		stop:          stop,
		logger:        logger.With("component", "LoanOrchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) RequestLoan(ctx context.Context, customerNumber string, amount Money) (*Loan, error) {
	logger := o.logger.With(slog.String("customerNumber", customerNumber))
	logger.InfoContext(ctx, "Loan requested", slog.Float64("amount", amount))

	if _, err := NewLoan(customerNumber, amount, o.clock.Now()); err != nil {
		monitoring.RecordLoanRequest(monitoring.OutcomeInvalid)
		return nil, err
	}

	subscribed, err := o.subscriptions.IsSubscribed(ctx, customerNumber)
	if err != nil {
		monitoring.RecordLoanRequest(monitoring.OutcomeFailed)
		logger.ErrorContext(ctx, "Failed to check subscription", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if !subscribed {
		monitoring.RecordLoanRequest(monitoring.OutcomeNotSubscribed)
		logger.WarnContext(ctx, "Loan refused: customer not subscribed")
		return nil, fmt.Errorf("%w: customer %s", apperrors.ErrNotSubscribed, customerNumber)
	}

	active, err := o.ledger.HasActiveLoan(ctx, customerNumber)
	if err != nil {
		monitoring.RecordLoanRequest(monitoring.OutcomeFailed)
		return nil, fmt.Errorf("failed to check active loans: %w", err)
	}
	if active {
		monitoring.RecordLoanRequest(monitoring.OutcomeActiveLoan)
		logger.WarnContext(ctx, "Loan refused: active loan exists")
		return nil, fmt.Errorf("%w: customer %s", apperrors.ErrActiveLoanExists, customerNumber)
	}

	if _, err := o.tokens.GetToken(ctx); err != nil {
		monitoring.RecordLoanRequest(monitoring.OutcomeFailed)
		logger.ErrorContext(ctx, "Failed to obtain client token", slog.Any("error", err))
		return nil, fmt.Errorf("failed to obtain client token: %w", err)
	}

	created, err := o.ledger.Create(ctx, customerNumber, amount)
	if err != nil {
		if errors.Is(err, apperrors.ErrActiveLoanExists) {
			monitoring.RecordLoanRequest(monitoring.OutcomeActiveLoan)
		} else {
			monitoring.RecordLoanRequest(monitoring.OutcomeFailed)
			logger.ErrorContext(ctx, "Failed to create loan", slog.Any("error", err))
		}
		return nil, err
	}
	monitoring.RecordLoanRequest(monitoring.OutcomeAccepted)
	monitoring.RecordTransition(string(StatusPending))
	o.publish(ctx, "", created)

	wf := newWorkflow(o, created)
	if !o.tracker.Start(o.baseCtx, created.ID, wf.run) {
		logger.ErrorContext(ctx, "Workflow already running", slog.String("loanID", created.ID))
	}

	logger.InfoContext(ctx, "Loan accepted", slog.String("loanID", created.ID))
	return created, nil
}

func (o *Orchestrator) GetLoan(ctx context.Context, loanID string) (*Loan, error) {
	l, err := o.ledger.Get(ctx, loanID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			o.logger.ErrorContext(ctx, "Failed to get loan", slog.String("loanID", loanID), slog.Any("error", err))
		}
		return nil, err
	}
	return l, nil
}

func (o *Orchestrator) GetCustomerLoans(ctx context.Context, customerNumber string) ([]*Loan, error) {
	return o.ledger.ListForCustomer(ctx, customerNumber)
}

func (o *Orchestrator) GetLatestLoan(ctx context.Context, customerNumber string) (*Loan, error) {
	loans, err := o.ledger.ListForCustomer(ctx, customerNumber)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, fmt.Errorf("%w: no loans for customer %s", apperrors.ErrNotFound, customerNumber)
	}
	return loans[0], nil
}

func (o *Orchestrator) HasActiveLoan(ctx context.Context, customerNumber string) (bool, error) {
	return o.ledger.HasActiveLoan(ctx, customerNumber)
}

// CancelLoan stops the loan's workflow, if any, and moves an active loan to
// CANCELED.
func (o *Orchestrator) CancelLoan(ctx context.Context, loanID string) (*Loan, error) {
	current, err := o.ledger.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsActive() {
		return nil, fmt.Errorf("%w: loan %s is %s", apperrors.ErrInvalidTransition, loanID, current.Status)
	}

	if o.tracker.Cancel(loanID, errCanceledByRequest) {
		if err := o.tracker.Wait(ctx, loanID); err != nil {
			return nil, err
		}
		if current, err = o.ledger.Get(ctx, loanID); err != nil {
			return nil, err
		}
		if current.Status == StatusCanceled {
			return current, nil
		}
	}

	canceled, err := o.transition(ctx, loanID, StatusCanceled, nil)
	if err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "Loan canceled", slog.String("loanID", loanID))
	return canceled, nil
}

func (o *Orchestrator) CompleteLoan(ctx context.Context, loanID string) (*Loan, error) {
	now := o.clock.Now()
	completed, err := o.transition(ctx, loanID, StatusCompleted, func(l *Loan) {
		l.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "Loan completed", slog.String("loanID", loanID))
	return completed, nil
}

// Wait blocks until the workflow for loanID, if any, has finished.
func (o *Orchestrator) Wait(ctx context.Context, loanID string) error {
	return o.tracker.Wait(ctx, loanID)
}

func (o *Orchestrator) InFlight() int {
	return o.tracker.InFlight()
}

// Drain waits for in-flight workflows. When ctx ends first the remaining
// workflows are interrupted and given a short grace period to record ERROR.
func (o *Orchestrator) Drain(ctx context.Context) error {
	err := o.tracker.Drain(ctx)
	if err == nil {
		return nil
	}
	o.logger.Warn("Interrupting in-flight loan workflows", slog.Int("inFlight", o.tracker.InFlight()))
	o.tracker.CancelAll(errShuttingDown)

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if graceErr := o.tracker.Drain(graceCtx); graceErr != nil {
		o.stop()
		return fmt.Errorf("workflows still running after shutdown grace: %w", graceErr)
	}
	o.stop()
	return err
}

func (o *Orchestrator) transition(ctx context.Context, loanID string, to Status, apply func(l *Loan)) (*Loan, error) {
	var from Status
	updated, err := o.ledger.Update(ctx, loanID, func(l *Loan) error {
		if !l.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, l.Status, to)
		}
		from = l.Status
		l.Status = to
		if apply != nil {
			apply(l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordTransition(string(to))
	o.logger.InfoContext(ctx, "Loan status changed",
		slog.String("loanID", loanID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	o.publish(ctx, from, updated)
	return updated, nil
}

func (o *Orchestrator) publish(ctx context.Context, from Status, l *Loan) {
	evt := event.LoanStatusChangedEvent{
		LoanID:          l.ID,
		CustomerNumber:  l.CustomerNumber,
		Amount:          l.Amount,
		OldStatus:       string(from),
		NewStatus:       string(l.Status),
		Exclusion:       l.Exclusion,
		ExclusionReason: l.ExclusionReason,
		Timestamp:       l.UpdatedAt,
	}
	if err := o.publisher.PublishLoanStatusChanged(context.WithoutCancel(ctx), evt); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish loan status event", slog.String("loanID", l.ID), slog.Any("error", err))
	}
}
