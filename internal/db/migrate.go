package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements are idempotent so migration can run on every deploy.
// Unique idempotency-key constraints on the journal and response tables are
// what the ledger's insert-if-absent commit path relies on.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        id UUID PRIMARY KEY,
        balance BIGINT NOT NULL CHECK (balance >= 0),
        description TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
        id UUID PRIMARY KEY,
        wallet_id UUID NOT NULL REFERENCES wallets (id),
        kind TEXT NOT NULL,
        amount BIGINT NOT NULL CHECK (amount > 0),
        idempotency_key TEXT NOT NULL UNIQUE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transfers (
        id UUID PRIMARY KEY,
        from_wallet_id UUID NOT NULL REFERENCES wallets (id),
        to_wallet_id UUID NOT NULL REFERENCES wallets (id),
        amount BIGINT NOT NULL CHECK (amount > 0),
        idempotency_key TEXT NOT NULL UNIQUE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transaction_responses (
        idempotency_key TEXT PRIMARY KEY,
        transaction_id UUID NOT NULL,
        wallet_id UUID NOT NULL,
        balance BIGINT NOT NULL,
        applied_at TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transfer_responses (
        idempotency_key TEXT PRIMARY KEY,
        transfer_id UUID NOT NULL,
        from_wallet_id UUID NOT NULL,
        from_balance BIGINT NOT NULL,
        to_wallet_id UUID NOT NULL,
        to_balance BIGINT NOT NULL,
        applied_at TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
