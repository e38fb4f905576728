package main

import (
	"context"
	"fmt"
	"log/slog"

	"lending-engine/internal/clock"
	"lending-engine/internal/config"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/domain/subscription"
	"lending-engine/internal/event"
	"lending-engine/internal/infrastructure/cache/redis"
	"lending-engine/internal/infrastructure/database/memory"
	"lending-engine/internal/infrastructure/database/postgres"
	"lending-engine/internal/kyc"
	"lending-engine/internal/scoring"
)

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"

	fallbackSynthetic = "synthetic"
	fallbackStrict    = "strict"
)

// engine holds the wired services and the resources to release on exit.
type engine struct {
	ledger        loan.Ledger
	subscriptions *subscription.Service
	orchestrator  *loan.Orchestrator
	closers       []func()
}

func (e *engine) onClose(f func()) {
	e.closers = append(e.closers, f)
}

// close releases resources in reverse order of acquisition.
func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	logger.Info("Initializing application components...")
	e := &engine{}
	clk := clock.NewSystem()

	ledger, store, err := initializeStorage(ctx, e, cfg, clk, logger)
	if err != nil {
		e.close()
		return nil, err
	}
	e.ledger = ledger

	publisher, err := initializePublisher(e, cfg.RabbitMQ, logger)
	if err != nil {
		e.close()
		return nil, err
	}

	gateway := scoring.NewHTTPClient(cfg.Scoring, logger)
	tokens, err := initializeTokenCache(ctx, e, cfg, gateway, logger)
	if err != nil {
		e.close()
		return nil, err
	}

	identityFallback, err := identityFallbackFor(cfg.Fallback.Identity, clk)
	if err != nil {
		e.close()
		return nil, err
	}
	subOpts := []subscription.Option{
		subscription.WithClock(clk),
		subscription.WithPublisher(publisher),
		subscription.WithIdentityFallback(identityFallback),
	}
	if cfg.Demo.SeedHistory {
		subOpts = append(subOpts, subscription.WithDemoHistory(ledger))
	}
	e.subscriptions = subscription.NewService(store, kyc.NewSOAPClient(cfg.KYC, logger), logger, subOpts...)

	e.orchestrator = loan.NewOrchestrator(ledger, gateway, tokens, e.subscriptions, logger,
		loan.WithPolicy(policyFrom(cfg.Scoring)),
		loan.WithClock(clk),
		loan.WithPublisher(publisher),
	)
	return e, nil
}

func initializeStorage(ctx context.Context, e *engine, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (loan.Ledger, subscription.Store, error) {
	switch cfg.Ledger.Driver {
	case "", driverMemory:
		logger.Info("Using in-memory ledger")
		return memory.NewLoanLedger(clk, logger), memory.NewSubscriptionStore(), nil
	case driverPostgres:
		dbPool, err := initializeDatabase(ctx, e, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewLoanLedger(dbPool, clk, logger), postgres.NewSubscriptionStore(dbPool, logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}

func initializeDatabase(ctx context.Context, e *engine, cfg *config.Config, logger *slog.Logger) (postgres.DBPool, error) {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	e.onClose(func() {
		logger.Info("Closing database connection pool...")
		dbPool.Close()
	})

	if err := postgres.Migrate(ctx, dbPool, logger); err != nil {
		return nil, err
	}
	return dbPool, nil
}

func initializePublisher(e *engine, cfg config.RabbitMQConfig, logger *slog.Logger) (event.EventPublisher, error) {
	if !cfg.Enabled {
		return event.NoopPublisher{}, nil
	}

	conn, err := event.Dial(cfg)
	if err != nil {
		return nil, err
	}
	e.onClose(func() {
		logger.Info("Closing RabbitMQ connection...")
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ connection", slog.Any("error", err))
		}
	})

	return event.NewRabbitMQEventPublisher(conn, cfg.ExchangeName, logger)
}

func initializeTokenCache(ctx context.Context, e *engine, cfg *config.Config, registrar scoring.Registrar, logger *slog.Logger) (*scoring.TokenCache, error) {
	fallback, err := tokenFallbackFor(cfg.Fallback.ClientToken)
	if err != nil {
		return nil, err
	}
	opts := []scoring.TokenCacheOption{scoring.WithTokenFallback(fallback)}

	switch cfg.Scoring.TokenStore {
	case "", driverMemory:
	case "redis":
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		e.onClose(func() {
			logger.Info("Closing Redis client...")
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close Redis client", slog.Any("error", err))
			}
		})
		opts = append(opts, scoring.WithTokenStore(redis.NewTokenStore(rdb, cfg.Redis.TokenKey)))
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Scoring.TokenStore)
	}

	info := scoring.ClientInfo{
		URL:      cfg.Scoring.Client.URL,
		Name:     cfg.Scoring.Client.Name,
		Username: cfg.Scoring.Client.Username,
		Password: cfg.Scoring.Client.Password,
	}
	return scoring.NewTokenCache(registrar, info, logger, opts...), nil
}

func tokenFallbackFor(mode string) (scoring.TokenFallback, error) {
	switch mode {
	case "", fallbackSynthetic:
		return scoring.SyntheticTokenFallback(), nil
	case fallbackStrict:
		return scoring.StrictTokenFallback(), nil
	default:
		return nil, fmt.Errorf("unknown client token fallback %q", mode)
	}
}

func identityFallbackFor(mode string, clk clock.Clock) (subscription.IdentityFallback, error) {
	switch mode {
	case "", fallbackSynthetic:
		return subscription.SyntheticIdentityFallback(clk), nil
	case fallbackStrict:
		return subscription.StrictIdentityFallback(), nil
	default:
		return nil, fmt.Errorf("unknown identity fallback %q", mode)
	}
}

func policyFrom(cfg config.ScoringConfig) loan.Policy {
	p := loan.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		p.RetryDelay = cfg.RetryDelay
	}
	if cfg.DisbursementDelay > 0 {
		p.DisbursementDelay = cfg.DisbursementDelay
	}
	return p
}
