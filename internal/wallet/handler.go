package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-pay/kobo_pay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	InitialBalance *int64 `json:"initial_balance"`
	Description    string `json:"description"`
}

type walletResponse struct {
	ID          string    `json:"id"`
	Balance     int64     `json:"balance"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create provisions a new wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.InitialBalance == nil {
		return fiber.NewError(http.StatusBadRequest, "initial_balance is required")
	}
	if *req.InitialBalance < 0 {
		return fiber.NewError(http.StatusBadRequest, "initial_balance must not be negative")
	}

	wallet, err := h.service.Create(c.UserContext(), CreateInput{
		InitialBalance: *req.InitialBalance,
		Description:    req.Description,
	})
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(toResponse(wallet))
}

// Get returns wallet details by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	wallet, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(wallet))
}

func toResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:          w.ID,
		Balance:     w.Balance,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
	}
}
