package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// errKeyConflict marks the loser of a same-key insert race. It never leaves
// this package; the caller retries the replay read instead.
var errKeyConflict = errors.New("idempotency key conflict")

// PostgresLedger persists wallets and mutation records in PostgreSQL. Each
// mutation runs as a single transaction: wallet rows are locked FOR UPDATE
// for the read-check-write, and the journal and stored-response rows are
// inserted under unique idempotency-key constraints.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateWallet inserts a wallet record.
func (l *PostgresLedger) CreateWallet(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return fmt.Errorf("parse wallet id: %w", err)
	}
	_, err = l.db.Exec(ctx, `INSERT INTO wallets (id, balance, description, created_at)
        VALUES ($1, $2, $3, $4)`, walletID, wallet.Balance, wallet.Description, wallet.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrWalletExists
	}
	return err
}

// GetWallet fetches a wallet by identifier.
func (l *PostgresLedger) GetWallet(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := l.db.QueryRow(ctx, `SELECT id, balance, description, created_at
        FROM wallets WHERE id = $1`, walletID)
	var w Wallet
	var idVal uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&idVal, &w.Balance, &w.Description, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

// Apply commits one credit or debit. Replays the stored response when the
// idempotency key was already applied; the loser of a concurrent same-key
// race falls back to the replay path instead of failing.
func (l *PostgresLedger) Apply(ctx context.Context, input ApplyInput) (TransactionResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := l.applyOnce(ctx, input)
		if errors.Is(err, errKeyConflict) {
			continue
		}
		return res, err
	}
	// A conflicting journal row was committed but its stored response never
	// became readable. Treat as journal/cache divergence.
	return TransactionResult{}, ErrDuplicateOperation
}

func (l *PostgresLedger) applyOnce(ctx context.Context, input ApplyInput) (TransactionResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if res, found, err := storedTransactionResponse(ctx, tx, input.IdempotencyKey); err != nil {
		return TransactionResult{}, err
	} else if found {
		return res, nil
	}

	var journalID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM wallet_transactions WHERE idempotency_key = $1`,
		input.IdempotencyKey).Scan(&journalID)
	if err == nil {
		return TransactionResult{}, ErrDuplicateOperation
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransactionResult{}, err
	}

	walletID, err := uuid.Parse(input.WalletID)
	if err != nil {
		return TransactionResult{}, ErrWalletNotFound
	}
	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionResult{}, ErrWalletNotFound
		}
		return TransactionResult{}, err
	}

	switch input.Kind {
	case KindDebit:
		if balance < input.Amount {
			return TransactionResult{}, ErrInsufficientBalance
		}
		balance -= input.Amount
	case KindCredit:
		balance += input.Amount
	default:
		return TransactionResult{}, fmt.Errorf("unknown transaction kind %q", input.Kind)
	}

	txID := uuid.New()
	appliedAt := time.Now().UTC()

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, balance, walletID); err != nil {
		return TransactionResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (id, wallet_id, kind, amount, idempotency_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		txID, walletID, string(input.Kind), input.Amount, input.IdempotencyKey, appliedAt); err != nil {
		if isUniqueViolation(err) {
			return TransactionResult{}, errKeyConflict
		}
		return TransactionResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transaction_responses (idempotency_key, transaction_id, wallet_id, balance, applied_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		input.IdempotencyKey, txID, walletID, balance, appliedAt, appliedAt); err != nil {
		if isUniqueViolation(err) {
			return TransactionResult{}, errKeyConflict
		}
		return TransactionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return TransactionResult{}, errKeyConflict
		}
		return TransactionResult{}, err
	}

	return TransactionResult{
		TransactionID: txID.String(),
		WalletID:      walletID.String(),
		Balance:       balance,
		AppliedAt:     appliedAt,
	}, nil
}

// Transfer atomically moves funds between two wallets. Both rows are locked
// in ascending wallet-id order regardless of direction so that opposing
// transfers between the same pair cannot deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := l.transferOnce(ctx, input)
		if errors.Is(err, errKeyConflict) {
			continue
		}
		return res, err
	}
	return TransferResult{}, ErrDuplicateOperation
}

func (l *PostgresLedger) transferOnce(ctx context.Context, input TransferInput) (TransferResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if res, found, err := storedTransferResponse(ctx, tx, input.IdempotencyKey); err != nil {
		return TransferResult{}, err
	} else if found {
		return res, nil
	}

	var journalID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM transfers WHERE idempotency_key = $1`,
		input.IdempotencyKey).Scan(&journalID)
	if err == nil {
		return TransferResult{}, ErrDuplicateOperation
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}

	fromID, err := uuid.Parse(input.FromWalletID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("sender: %w", ErrWalletNotFound)
	}
	toID, err := uuid.Parse(input.ToWalletID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("receiver: %w", ErrWalletNotFound)
	}
	if fromID == toID {
		return TransferResult{}, fmt.Errorf("transfer source and destination must differ")
	}

	// Fixed global lock order: ascending wallet id.
	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}

	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{first, second} {
		var balance int64
		err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, err
		}
		if err == nil {
			balances[id] = balance
		}
	}

	// Sender existence is reported before receiver.
	fromBalance, ok := balances[fromID]
	if !ok {
		return TransferResult{}, fmt.Errorf("sender: %w", ErrWalletNotFound)
	}
	toBalance, ok := balances[toID]
	if !ok {
		return TransferResult{}, fmt.Errorf("receiver: %w", ErrWalletNotFound)
	}

	if fromBalance < input.Amount {
		return TransferResult{}, ErrInsufficientBalance
	}

	fromBalance -= input.Amount
	toBalance += input.Amount

	transferID := uuid.New()
	appliedAt := time.Now().UTC()

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, fromBalance, fromID); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, toBalance, toID); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transfers (id, from_wallet_id, to_wallet_id, amount, idempotency_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		transferID, fromID, toID, input.Amount, input.IdempotencyKey, appliedAt); err != nil {
		if isUniqueViolation(err) {
			return TransferResult{}, errKeyConflict
		}
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transfer_responses (idempotency_key, transfer_id, from_wallet_id, from_balance, to_wallet_id, to_balance, applied_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		input.IdempotencyKey, transferID, fromID, fromBalance, toID, toBalance, appliedAt, appliedAt); err != nil {
		if isUniqueViolation(err) {
			return TransferResult{}, errKeyConflict
		}
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return TransferResult{}, errKeyConflict
		}
		return TransferResult{}, err
	}

	return TransferResult{
		TransferID:   transferID.String(),
		FromWalletID: fromID.String(),
		FromBalance:  fromBalance,
		ToWalletID:   toID.String(),
		ToBalance:    toBalance,
		AppliedAt:    appliedAt,
	}, nil
}

func storedTransactionResponse(ctx context.Context, tx pgx.Tx, key string) (TransactionResult, bool, error) {
	const query = `SELECT transaction_id, wallet_id, balance, applied_at
        FROM transaction_responses WHERE idempotency_key = $1`
	var txID, walletID uuid.UUID
	var res TransactionResult
	var appliedAt time.Time
	if err := tx.QueryRow(ctx, query, key).Scan(&txID, &walletID, &res.Balance, &appliedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionResult{}, false, nil
		}
		return TransactionResult{}, false, err
	}
	res.TransactionID = txID.String()
	res.WalletID = walletID.String()
	res.AppliedAt = appliedAt.UTC()
	return res, true, nil
}

func storedTransferResponse(ctx context.Context, tx pgx.Tx, key string) (TransferResult, bool, error) {
	const query = `SELECT transfer_id, from_wallet_id, from_balance, to_wallet_id, to_balance, applied_at
        FROM transfer_responses WHERE idempotency_key = $1`
	var transferID, fromID, toID uuid.UUID
	var res TransferResult
	var appliedAt time.Time
	if err := tx.QueryRow(ctx, query, key).Scan(&transferID, &fromID, &res.FromBalance, &toID, &res.ToBalance, &appliedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, false, nil
		}
		return TransferResult{}, false, err
	}
	res.TransferID = transferID.String()
	res.FromWalletID = fromID.String()
	res.ToWalletID = toID.String()
	res.AppliedAt = appliedAt.UTC()
	return res, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
