package postgres

import (
	"context"
	"log/slog"
	"time"

	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

const (
	insertSubscriptionSQL = `
        INSERT INTO subscriptions (customer_number, subscribed_at)
        VALUES ($1, NOW())
        ON CONFLICT (customer_number) DO NOTHING`

	deleteSubscriptionSQL = `
        DELETE FROM subscriptions
        WHERE customer_number = $1`

	subscriptionExistsSQL = `
        SELECT EXISTS (SELECT 1 FROM subscriptions WHERE customer_number = $1)`
)

type SubscriptionStore struct {
	db     DBPool
	logger *slog.Logger
}

func NewSubscriptionStore(db DBPool, logger *slog.Logger) *SubscriptionStore {
	if db == nil {
		panic("DBPool cannot be nil for SubscriptionStore")
	}
	return &SubscriptionStore{db: db, logger: logger.With("component", "PostgresSubscriptionStore")}
}

func (s *SubscriptionStore) Add(ctx context.Context, customerNumber string) error {
	start := time.Now()
	_, err := s.db.Exec(ctx, insertSubscriptionSQL, customerNumber)
	monitoring.RecordDBQuery("AddSubscription", queryStatus(err), time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert subscription", "customer_number", customerNumber, slog.Any("error", err))
		return apperrors.WrapDatabaseError(err, "failed to add subscription")
	}
	return nil
}

func (s *SubscriptionStore) Remove(ctx context.Context, customerNumber string) (bool, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx, deleteSubscriptionSQL, customerNumber)
	monitoring.RecordDBQuery("RemoveSubscription", queryStatus(err), time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete subscription", "customer_number", customerNumber, slog.Any("error", err))
		return false, apperrors.WrapDatabaseError(err, "failed to remove subscription")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SubscriptionStore) Contains(ctx context.Context, customerNumber string) (bool, error) {
	var exists bool
	start := time.Now()
	err := s.db.QueryRow(ctx, subscriptionExistsSQL, customerNumber).Scan(&exists)
	monitoring.RecordDBQuery("SubscriptionExists", queryStatus(err), time.Since(start))
	if err != nil {
		return false, apperrors.WrapDatabaseError(err, "failed to look up subscription")
	}
	return exists, nil
}
