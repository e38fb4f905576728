package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/panics"

	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/scoring"
)

var errScoreRetriesExhausted = errors.New("failed to get customer score after maximum retries")

// workflow is one scoring run for one loan.
type workflow struct {
	o              *Orchestrator
	loanID         string
	customerNumber string
	amount         Money
	logger         *slog.Logger
}

func newWorkflow(o *Orchestrator, l *Loan) *workflow {
	return &workflow{
		o:              o,
		loanID:         l.ID,
		customerNumber: l.CustomerNumber,
		amount:         l.Amount,
		logger:         o.logger.With(slog.String("loanID", l.ID), slog.String("customerNumber", l.CustomerNumber)),
	}
}

func (w *workflow) run(ctx context.Context) {
	var pc panics.Catcher
	pc.Try(func() { w.execute(ctx) })
	if r := pc.Recovered(); r != nil {
		err := r.AsError()
		w.logger.ErrorContext(ctx, "Loan workflow panicked", slog.Any("error", err))
		w.fail(context.WithoutCancel(ctx), fmt.Errorf("workflow panicked: %v", r.Value))
	}
}

func (w *workflow) execute(ctx context.Context) {
	// Ledger writes must land even after ctx is canceled.
	store := context.WithoutCancel(ctx)

	if _, err := w.o.transition(store, w.loanID, StatusProcessing, nil); err != nil {
		w.logger.WarnContext(ctx, "Could not start processing", slog.Any("error", err))
		return
	}
	if w.interrupted(ctx) {
		return
	}

	clientToken, err := w.o.tokens.GetToken(ctx)
	if err != nil {
		w.abort(ctx, err)
		return
	}

	queryToken, err := w.o.gateway.InitiateScoreQuery(ctx, w.customerNumber, clientToken)
	if err != nil {
		w.logger.WarnContext(ctx, "Score query initiation failed", slog.Any("error", err))
		w.abort(ctx, err)
		return
	}

	result, err := w.pollScore(ctx, queryToken, clientToken)
	if err != nil {
		w.abort(ctx, err)
		return
	}

	w.decide(ctx, *result)
}

// pollScore queries the gateway until a definite score arrives. Pending
// answers and failed calls both consume an attempt.
func (w *workflow) pollScore(ctx context.Context, queryToken, clientToken string) (*scoring.ScoreResult, error) {
	policy := w.o.policy
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}

		outcome, err := w.o.gateway.QueryScore(ctx, queryToken, clientToken)
		switch {
		case err != nil:
			monitoring.RecordPollAttempt(monitoring.PollResultError)
			w.logger.WarnContext(ctx, "Score query failed", slog.Int("attempt", attempt), slog.Any("error", err))
		case outcome.Pending || outcome.Result == nil:
			monitoring.RecordPollAttempt(monitoring.PollResultPending)
			w.logger.DebugContext(ctx, "Score pending", slog.Int("attempt", attempt))
		default:
			monitoring.RecordPollAttempt(monitoring.PollResultReady)
			return outcome.Result, nil
		}

		if attempt < policy.MaxAttempts {
			if err := sleep(ctx, policy.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, errScoreRetriesExhausted
}

func (w *workflow) decide(ctx context.Context, result scoring.ScoreResult) {
	store := context.WithoutCancel(ctx)
	score, limit := result.Score, result.LimitAmount
	record := func(l *Loan) {
		l.Score = &score
		l.Limit = &limit
		l.Exclusion = result.Exclusion
		l.ExclusionReason = result.ExclusionReason
	}

	if result.Excluded() {
		w.logger.InfoContext(ctx, "Loan rejected by exclusion", slog.String("exclusion", result.Exclusion))
		w.settle(store, StatusRejected, record)
		return
	}

	if w.amount > limit {
		w.logger.InfoContext(ctx, "Loan rejected: amount over limit", slog.Float64("amount", w.amount), slog.Float64("limit", limit))
		w.settle(store, StatusRejected, func(l *Loan) {
			record(l)
			l.ExclusionReason = "requested amount exceeds available limit of " + formatMoney(limit)
		})
		return
	}

	approvedAt := w.o.clock.Now()
	if !w.settle(store, StatusApproved, func(l *Loan) {
		record(l)
		l.DisbursedAt = &approvedAt
	}) {
		return
	}

	if err := sleep(ctx, w.o.policy.DisbursementDelay); err != nil {
		if errors.Is(err, errCanceledByRequest) {
			w.settle(store, StatusCanceled, nil)
			return
		}
		// An approved loan is always disbursed; shutdown only cuts the wait short.
		w.logger.WarnContext(ctx, "Disbursing before settlement delay elapsed", slog.Any("cause", err))
	}
	w.settle(store, StatusDisbursed, nil)
}

func (w *workflow) settle(ctx context.Context, to Status, apply func(l *Loan)) bool {
	if _, err := w.o.transition(ctx, w.loanID, to, apply); err != nil {
		w.logger.WarnContext(ctx, "Loan transition failed", slog.String("to", string(to)), slog.Any("error", err))
		return false
	}
	return true
}

// abort handles a fatal error, unless it was caused by cancellation.
func (w *workflow) abort(ctx context.Context, err error) {
	if w.interrupted(ctx) {
		return
	}
	w.fail(context.WithoutCancel(ctx), err)
}

func (w *workflow) fail(ctx context.Context, err error) {
	w.logger.ErrorContext(ctx, "Loan workflow failed", slog.Any("error", err))
	w.settle(ctx, StatusError, func(l *Loan) {
		l.Exclusion = ExclusionError
		l.ExclusionReason = err.Error()
	})
}

// interrupted reports whether ctx was canceled and, if so, records the
// matching terminal status.
func (w *workflow) interrupted(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	cause := context.Cause(ctx)
	store := context.WithoutCancel(ctx)
	if errors.Is(cause, errCanceledByRequest) {
		w.settle(store, StatusCanceled, nil)
	} else {
		w.fail(store, fmt.Errorf("workflow interrupted: %w", cause))
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func formatMoney(m Money) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}
