package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lending-engine/internal/config"
	"lending-engine/internal/infrastructure/monitoring"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

const (
	defaultMaxConns          = 10
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultHealthCheckPeriod = time.Minute
	defaultPingTimeout       = 5 * time.Second
)

// NewConnectionPool opens a pgx pool sized from cfg and pings it before
// handing it out.
func NewConnectionPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is empty in configuration")
	}
	logger = logger.With("component", "PostgresPool")

	poolConfig, err := configurePool(cfg)
	if err != nil {
		return nil, err
	}
	target := []any{
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("db", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	}

	logger.Info("Connecting to ledger database", target...)
	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := verifyConnection(ctx, dbpool, cfg.PingTimeout, logger); err != nil {
		dbpool.Close()
		return nil, err
	}

	logger.Info("Ledger database ready", target...)
	return dbpool, nil
}

// configurePool parses the URL and applies pool limits. Zero values in cfg
// keep the package defaults.
func configurePool(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config from URL: %w", err)
	}

	poolConfig.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		if cfg.MinConns > poolConfig.MaxConns {
			return nil, fmt.Errorf("database minConns %d exceeds maxConns %d", cfg.MinConns, poolConfig.MaxConns)
		}
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolConfig.MaxConnIdleTime = durationOr(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	poolConfig.HealthCheckPeriod = durationOr(cfg.HealthCheckPeriod, defaultHealthCheckPeriod)

	return poolConfig, nil
}

func verifyConnection(ctx context.Context, db DBPool, timeout time.Duration, logger *slog.Logger) error {
	pingCtx, cancel := context.WithTimeout(ctx, durationOr(timeout, defaultPingTimeout))
	defer cancel()

	start := time.Now()
	err := db.Ping(pingCtx)
	monitoring.RecordDBQuery("Ping", queryStatus(err), time.Since(start))
	if err != nil {
		logger.Error("Failed to ping database", slog.Any("error", err))
		return fmt.Errorf("failed to ping database on connect: %w", err)
	}
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
