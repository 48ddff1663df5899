package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kobo-pay/kobo_pay/internal/ledger"
)

// Service exposes wallet lifecycle operations backed by the ledger store.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(ledgerBackend ledger.Ledger) *Service {
	return &Service{ledger: ledgerBackend}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	InitialBalance int64
	Description    string
}

// Create provisions a wallet with the given opening balance. Not idempotent:
// repeated calls create distinct wallets.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if input.InitialBalance < 0 {
		return ledger.Wallet{}, fmt.Errorf("initial balance must not be negative")
	}

	wallet := ledger.Wallet{
		ID:          uuid.NewString(),
		Balance:     input.InitialBalance,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.ledger.CreateWallet(ctx, wallet); err != nil {
		return ledger.Wallet{}, err
	}

	return wallet, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.ledger.GetWallet(ctx, id)
}
