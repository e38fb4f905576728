package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/loan"
)

var (
	applyCustomer string
	applyAmount   string
	applyTimeout  time.Duration
)

// applyCmd runs one loan through the whole workflow without the HTTP layer.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Subscribe a customer, request a loan and wait for the decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.CreateLoanRequest{CustomerNumber: applyCustomer, Amount: applyAmount}
		if err := req.Validate(); err != nil {
			return err
		}
		amount, _ := req.ParsedAmount()

		cfg, logger, err := initializeApp(cfgPath, os.Stderr)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), applyTimeout)
		defer cancel()

		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.close()

		result, err := applyForLoan(ctx, eng.subscriptions, eng.orchestrator, req.CustomerNumber, amount)
		if err != nil {
			drainCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			_ = eng.orchestrator.Drain(drainCtx)
			return err
		}

		out, err := json.MarshalIndent(dto.NewLoanResponse(result), "", "  ")
		if err != nil {
			return fmt.Errorf("encode loan: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		logger.Info("Loan workflow finished", slog.String("loanID", result.ID), slog.String("status", string(result.Status)))
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyCustomer, "customer", "", "customer number")
	applyCmd.Flags().StringVar(&applyAmount, "amount", "", "requested amount, e.g. 5000.00")
	applyCmd.Flags().DurationVar(&applyTimeout, "timeout", 2*time.Minute, "how long to wait for a decision")
	_ = applyCmd.MarkFlagRequired("customer")
	_ = applyCmd.MarkFlagRequired("amount")
}

type enroller interface {
	IsSubscribed(ctx context.Context, customerNumber string) (bool, error)
	Subscribe(ctx context.Context, customerNumber string) (bool, error)
}

// applyForLoan subscribes the customer if needed, submits the loan and
// returns it once its workflow has stopped.
func applyForLoan(ctx context.Context, subs enroller, loans loan.LoanService, customerNumber string, amount loan.Money) (*loan.Loan, error) {
	subscribed, err := subs.IsSubscribed(ctx, customerNumber)
	if err != nil {
		return nil, err
	}
	if !subscribed {
		if _, err := subs.Subscribe(ctx, customerNumber); err != nil {
			return nil, fmt.Errorf("subscribe customer %s: %w", customerNumber, err)
		}
	}

	created, err := loans.RequestLoan(ctx, customerNumber, amount)
	if err != nil {
		return nil, err
	}
	if err := loans.Wait(ctx, created.ID); err != nil {
		return nil, fmt.Errorf("waiting for loan %s: %w", created.ID, err)
	}
	return loans.GetLoan(ctx, created.ID)
}
