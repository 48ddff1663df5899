package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance occurs when a debit or transfer would drive the
	// wallet balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateOperation signals that a journal entry exists for the
	// idempotency key but no stored response does. The journal is the
	// authoritative duplicate record, so this is reported to the caller
	// instead of being silently replayed.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrWalletExists indicates a wallet with the given id is already stored.
	ErrWalletExists = errors.New("wallet already exists")
)

// Kind identifies the direction of a single-wallet transaction.
type Kind string

const (
	// KindCredit increases the wallet balance.
	KindCredit Kind = "CREDIT"
	// KindDebit decreases the wallet balance.
	KindDebit Kind = "DEBIT"
)

// Valid reports whether the kind is one of the supported directions.
func (k Kind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// Wallet is a stored-value account. Balance is kept in the smallest
// currency unit and never goes negative.
type Wallet struct {
	ID          string
	Balance     int64
	Description string
	CreatedAt   time.Time
}

// ApplyInput carries one single-wallet credit or debit request.
type ApplyInput struct {
	WalletID       string
	Amount         int64
	Kind           Kind
	IdempotencyKey string
}

// TransferInput carries one wallet-to-wallet transfer request.
type TransferInput struct {
	FromWalletID   string
	ToWalletID     string
	Amount         int64
	IdempotencyKey string
}

// TransactionResult is the outcome of a single-wallet transaction. Replayed
// requests return the result recorded at first application, timestamp
// included.
type TransactionResult struct {
	TransactionID string    `json:"transaction_id"`
	WalletID      string    `json:"wallet_id"`
	Balance       int64     `json:"balance"`
	AppliedAt     time.Time `json:"applied_at"`
}

// TransferResult is the outcome of a transfer, mirroring both wallets'
// post-mutation balances.
type TransferResult struct {
	TransferID   string    `json:"transfer_id"`
	FromWalletID string    `json:"from_wallet_id"`
	FromBalance  int64     `json:"from_balance"`
	ToWalletID   string    `json:"to_wallet_id"`
	ToBalance    int64     `json:"to_balance"`
	AppliedAt    time.Time `json:"applied_at"`
}

// Ledger is the contract implemented by ledger backends (e.g. Postgres).
// Apply and Transfer commit the balance mutation, the journal record and the
// stored response as one atomic unit, and replay the stored response when the
// idempotency key was already applied.
type Ledger interface {
	CreateWallet(ctx context.Context, wallet Wallet) error
	GetWallet(ctx context.Context, id string) (Wallet, error)
	Apply(ctx context.Context, input ApplyInput) (TransactionResult, error)
	Transfer(ctx context.Context, input TransferInput) (TransferResult, error)
}
