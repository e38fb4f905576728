package postgres

import (
	"context"
	"fmt"
	"log/slog"
)

// schemaSQL is idempotent. The partial unique index is what enforces a
// single active loan per customer.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS loans (
    id               TEXT PRIMARY KEY,
    customer_number  TEXT NOT NULL,
    amount           NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    status           TEXT NOT NULL,
    score            INTEGER,
    credit_limit     NUMERIC(14, 2),
    exclusion        TEXT NOT NULL DEFAULT '',
    exclusion_reason TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    disbursed_at     TIMESTAMPTZ,
    completed_at     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS loans_one_active_per_customer
    ON loans (customer_number)
    WHERE status IN ('PENDING', 'PROCESSING', 'APPROVED', 'DISBURSED');

CREATE INDEX IF NOT EXISTS loans_customer_created_at
    ON loans (customer_number, created_at DESC);

CREATE TABLE IF NOT EXISTS subscriptions (
    customer_number TEXT PRIMARY KEY,
    subscribed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Migrate creates the tables the ledger and registry need.
func Migrate(ctx context.Context, db DBPool, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		logger.ErrorContext(ctx, "Failed to apply schema", slog.Any("error", err))
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.InfoContext(ctx, "Database schema is up to date")
	return nil
}
