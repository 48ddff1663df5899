package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobo-pay/kobo_pay/internal/transactions"
)

// RegisterTransactionRoutes wires transaction and transfer endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler) {
	r.Post("/transactions", h.Apply)
	r.Post("/transactions/transfer", h.Transfer)
}
