package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"lending-engine/internal/api"
	"lending-engine/internal/batch"
	"lending-engine/internal/config"
)

const (
	defaultLedgerReportSchedule = "*/5 * * * *"
	defaultLedgerReportTimeout  = 30 * time.Second
	defaultShutdownTimeout      = 20 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the loan workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := initializeApp(cfgPath, nil)
		if err != nil {
			return err
		}

		ctx, stop := context.WithCancel(cmd.Context())
		defer stop()

		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize application", slog.Any("error", err))
			return err
		}
		defer eng.close()

		reportJob := batch.NewLedgerReportJob(eng.ledger, eng.orchestrator.InFlight, logger)
		cronScheduler := startBatchJobs(cfg, logger, reportJob)
		router := api.SetupRouter(ctx, eng.orchestrator, eng.subscriptions, cfg, logger)

		srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
		return handleShutdown(srv, cronScheduler, eng.orchestrator, shutdownChan, serverErrors, cfg.Server.ShutdownTimeout, logger)
	},
}

// drainer is the part of the orchestrator shutdown depends on.
type drainer interface {
	Drain(ctx context.Context) error
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

// handleShutdown blocks until a signal or a server failure, then stops the
// scheduler, the HTTP server and the in-flight loan workflows in that order.
func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, workflows drainer, shutdownChan <-chan os.Signal, serverErrors <-chan error, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var (
		triggerReason string
		serverErr     error
		serverExited  bool
	)
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		serverExited = true
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			serverErr = err
		}
		triggerReason = "server exited"
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-shutdownCtx.Done():
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	if !serverExited {
		logger.Info("Shutting down HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("HTTP server forced close failed", "error", err)
			}
		} else {
			logger.Info("HTTP server gracefully stopped.")
		}

		select {
		case err := <-serverErrors:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
			} else {
				logger.Info("Server goroutine confirmed exit.")
			}
		case <-time.After(5 * time.Second):
			logger.Warn("Timed out waiting for server goroutine confirmation.")
		}
	}

	logger.Info("Draining loan workflows...")
	if err := workflows.Drain(shutdownCtx); err != nil {
		logger.Warn("Loan workflows did not finish cleanly", slog.Any("error", err))
	} else {
		logger.Info("Loan workflows drained.")
	}

	logger.Info("Application shutdown process complete.")
	return serverErr
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, reportJob *batch.LedgerReportJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.LedgerReportSchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultLedgerReportSchedule
		logger.Warn("Ledger report schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.LedgerReportTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultLedgerReportTimeout
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "LedgerReport")
		jobLogger.Debug("Cron triggered: Running ledger report job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := reportJob.Run(ctx); runErr != nil {
			jobLogger.Error("Ledger report job finished with error", slog.Any("error", runErr))
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule ledger report job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled ledger report job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
