package transactions

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-pay/kobo_pay/internal/ledger"
)

// Handler exposes transaction endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionRequest struct {
	WalletID       string `json:"wallet_id"`
	Amount         int64  `json:"amount"`
	Type           string `json:"type"`
	IdempotencyKey string `json:"idempotency_key"`
}

type transferRequest struct {
	FromWalletID   string `json:"from_wallet_id"`
	ToWalletID     string `json:"to_wallet_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Apply processes a credit or debit against a wallet.
func (h *Handler) Apply(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validateTransaction(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Apply(c.UserContext(), TransactionInput{
		WalletID:       req.WalletID,
		Amount:         req.Amount,
		Kind:           ledger.Kind(req.Type),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(http.StatusOK).JSON(envelope{
		Status:  "SUCCESS",
		Message: "Transaction completed successfully",
		Data:    res,
	})
}

// Transfer processes a wallet-to-wallet transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validateTransfer(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(http.StatusOK).JSON(envelope{
		Status:  "SUCCESS",
		Message: "Transfer completed successfully",
		Data:    res,
	})
}

func validateTransaction(req transactionRequest) error {
	switch {
	case req.WalletID == "":
		return errors.New("wallet_id is required")
	case req.Amount <= 0:
		return errors.New("amount must be positive")
	case !ledger.Kind(req.Type).Valid():
		return errors.New("type must be CREDIT or DEBIT")
	case req.IdempotencyKey == "":
		return errors.New("idempotency_key is required")
	}
	return nil
}

func validateTransfer(req transferRequest) error {
	switch {
	case req.FromWalletID == "":
		return errors.New("from_wallet_id is required")
	case req.ToWalletID == "":
		return errors.New("to_wallet_id is required")
	case req.FromWalletID == req.ToWalletID:
		return errors.New("from_wallet_id and to_wallet_id must differ")
	case req.Amount <= 0:
		return errors.New("amount must be positive")
	case req.IdempotencyKey == "":
		return errors.New("idempotency_key is required")
	}
	return nil
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ledger.ErrDuplicateOperation):
		return fiber.NewError(http.StatusConflict, "duplicate operation")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
