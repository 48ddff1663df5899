package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu                sync.Mutex
	wallets           map[string]Wallet
	txJournal         map[string]struct{}
	transferJournal   map[string]struct{}
	txResponses       map[string]TransactionResult
	transferResponses map[string]TransferResult
}

// NewInMemory creates a concurrency-safe in-memory ledger with the same
// atomicity and idempotency semantics as the Postgres backend. Used for unit
// tests and when the service runs without a database in development.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		wallets:           make(map[string]Wallet),
		txJournal:         make(map[string]struct{}),
		transferJournal:   make(map[string]struct{}),
		txResponses:       make(map[string]TransactionResult),
		transferResponses: make(map[string]TransferResult),
	}
}

func (l *inMemoryLedger) CreateWallet(_ context.Context, wallet Wallet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.wallets[wallet.ID]; exists {
		return ErrWalletExists
	}
	l.wallets[wallet.ID] = wallet
	return nil
}

func (l *inMemoryLedger) GetWallet(_ context.Context, id string) (Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wallet, ok := l.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (l *inMemoryLedger) Apply(_ context.Context, input ApplyInput) (TransactionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.txResponses[input.IdempotencyKey]; exists {
		return res, nil
	}
	if _, exists := l.txJournal[input.IdempotencyKey]; exists {
		return TransactionResult{}, ErrDuplicateOperation
	}

	wallet, ok := l.wallets[input.WalletID]
	if !ok {
		return TransactionResult{}, ErrWalletNotFound
	}

	switch input.Kind {
	case KindDebit:
		if wallet.Balance < input.Amount {
			return TransactionResult{}, ErrInsufficientBalance
		}
		wallet.Balance -= input.Amount
	case KindCredit:
		wallet.Balance += input.Amount
	default:
		return TransactionResult{}, fmt.Errorf("unknown transaction kind %q", input.Kind)
	}

	res := TransactionResult{
		TransactionID: uuid.NewString(),
		WalletID:      wallet.ID,
		Balance:       wallet.Balance,
		AppliedAt:     time.Now().UTC(),
	}

	// Balance mutation, journal entry and stored response commit together
	// under the mutex.
	l.wallets[input.WalletID] = wallet
	l.txJournal[input.IdempotencyKey] = struct{}{}
	l.txResponses[input.IdempotencyKey] = res
	return res, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, input TransferInput) (TransferResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.transferResponses[input.IdempotencyKey]; exists {
		return res, nil
	}
	if _, exists := l.transferJournal[input.IdempotencyKey]; exists {
		return TransferResult{}, ErrDuplicateOperation
	}

	if input.FromWalletID == input.ToWalletID {
		return TransferResult{}, fmt.Errorf("transfer source and destination must differ")
	}

	from, ok := l.wallets[input.FromWalletID]
	if !ok {
		return TransferResult{}, fmt.Errorf("sender: %w", ErrWalletNotFound)
	}
	to, ok := l.wallets[input.ToWalletID]
	if !ok {
		return TransferResult{}, fmt.Errorf("receiver: %w", ErrWalletNotFound)
	}

	if from.Balance < input.Amount {
		return TransferResult{}, ErrInsufficientBalance
	}

	from.Balance -= input.Amount
	to.Balance += input.Amount

	res := TransferResult{
		TransferID:   uuid.NewString(),
		FromWalletID: from.ID,
		FromBalance:  from.Balance,
		ToWalletID:   to.ID,
		ToBalance:    to.Balance,
		AppliedAt:    time.Now().UTC(),
	}

	l.wallets[input.FromWalletID] = from
	l.wallets[input.ToWalletID] = to
	l.transferJournal[input.IdempotencyKey] = struct{}{}
	l.transferResponses[input.IdempotencyKey] = res
	return res, nil
}
