package transactions

import (
	"context"
	"fmt"

	"github.com/kobo-pay/kobo_pay/internal/ledger"
	"github.com/kobo-pay/kobo_pay/internal/notification"
)

// Service orchestrates idempotent ledger mutations: it validates the request,
// consults the response cache for a fast replay, delegates the atomic commit
// to the ledger store and back-fills the cache afterwards.
type Service struct {
	ledger   ledger.Ledger
	cache    *ledger.ResponseCache
	notifier notification.Notifier
}

// NewService constructs a transaction service. The cache and notifier are
// optional.
func NewService(ledgerBackend ledger.Ledger, cache *ledger.ResponseCache, notifier notification.Notifier) *Service {
	return &Service{ledger: ledgerBackend, cache: cache, notifier: notifier}
}

// TransactionInput captures one credit or debit request.
type TransactionInput struct {
	WalletID       string
	Amount         int64
	Kind           ledger.Kind
	IdempotencyKey string
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	FromWalletID   string
	ToWalletID     string
	Amount         int64
	IdempotencyKey string
}

// Apply performs a single-wallet credit or debit, applying it at most once
// per idempotency key. Retries with the same key return the response
// recorded at first application.
func (s *Service) Apply(ctx context.Context, input TransactionInput) (ledger.TransactionResult, error) {
	if input.Amount <= 0 {
		return ledger.TransactionResult{}, fmt.Errorf("amount must be positive")
	}
	if input.IdempotencyKey == "" {
		return ledger.TransactionResult{}, fmt.Errorf("idempotency key is required")
	}
	if !input.Kind.Valid() {
		return ledger.TransactionResult{}, fmt.Errorf("unknown transaction kind %q", input.Kind)
	}

	if res, ok := s.cache.GetTransaction(ctx, input.IdempotencyKey); ok {
		return res, nil
	}

	res, err := s.ledger.Apply(ctx, ledger.ApplyInput{
		WalletID:       input.WalletID,
		Amount:         input.Amount,
		Kind:           input.Kind,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return ledger.TransactionResult{}, err
	}

	s.cache.PutTransaction(ctx, input.IdempotencyKey, res)
	return res, nil
}

// Transfer moves funds between two wallets, applied at most once per
// idempotency key. Source and destination must differ.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.TransferResult, error) {
	if input.Amount <= 0 {
		return ledger.TransferResult{}, fmt.Errorf("amount must be positive")
	}
	if input.IdempotencyKey == "" {
		return ledger.TransferResult{}, fmt.Errorf("idempotency key is required")
	}
	if input.FromWalletID == input.ToWalletID {
		return ledger.TransferResult{}, fmt.Errorf("transfer source and destination must differ")
	}

	if res, ok := s.cache.GetTransfer(ctx, input.IdempotencyKey); ok {
		return res, nil
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferInput{
		FromWalletID:   input.FromWalletID,
		ToWalletID:     input.ToWalletID,
		Amount:         input.Amount,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return ledger.TransferResult{}, err
	}

	s.cache.PutTransfer(ctx, input.IdempotencyKey, res)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.ToWalletID,
			Body:        fmt.Sprintf("You received %d from wallet %s", input.Amount, input.FromWalletID),
		})
	}

	return res, nil
}
