package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
)

// StatusCounter is the part of the ledger the report needs.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[loan.Status]int, error)
}

// LedgerReportJob publishes the per-status loan counts as gauges and logs a
// summary line.
type LedgerReportJob struct {
	ledger   StatusCounter
	inFlight func() int
	logger   *slog.Logger
}

func NewLedgerReportJob(ledger StatusCounter, inFlight func() int, logger *slog.Logger) *LedgerReportJob {
	if ledger == nil || logger == nil {
		panic("LedgerReportJob dependencies cannot be nil")
	}
	if inFlight == nil {
		inFlight = func() int { return 0 }
	}
	return &LedgerReportJob{
		ledger:   ledger,
		inFlight: inFlight,
		logger:   logger.With("job", "LedgerReport"),
	}
}

func (j *LedgerReportJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.DebugContext(ctx, "Starting ledger report job.")

	counts, err := j.ledger.CountByStatus(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to count loans by status, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run ledger report: %w", err)
	}

	statuses := make([]string, 0, len(loan.AllStatuses))
	byName := make(map[string]int, len(counts))
	attrs := make([]any, 0, len(loan.AllStatuses)+3)
	total, active := 0, 0
	for _, s := range loan.AllStatuses {
		n := counts[s]
		statuses = append(statuses, string(s))
		byName[string(s)] = n
		attrs = append(attrs, slog.Int(string(s), n))
		total += n
		if s.IsActive() {
			active += n
		}
	}
	monitoring.SetLoansByStatus(statuses, byName)

	attrs = append(attrs,
		slog.Int("total", total),
		slog.Int("active", active),
		slog.Int("workflows_in_flight", j.inFlight()),
		slog.Duration("duration", time.Since(startTime)),
	)
	j.logger.InfoContext(ctx, "Ledger report finished.", attrs...)
	return nil
}
