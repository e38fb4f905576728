package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lending-engine/internal/config"
	"lending-engine/internal/infrastructure/logging"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:          "lending-engine",
		Short:        "Loan scoring and disbursement engine",
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "directory holding config.yml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(applyCmd)
}

// initializeApp loads the configuration and installs the process logger.
func initializeApp(path string, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logger, logOut)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_path", path, "ledger_driver", cfg.Ledger.Driver)

	return cfg, logger, nil
}

func setupLogger(cfg config.LoggerConfig, w io.Writer) *slog.Logger {
	if w == nil {
		return logging.NewLogger(cfg)
	}
	return logging.New(cfg, w)
}
