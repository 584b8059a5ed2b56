package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/transaction"
)

// RegisterTransactionRoutes wires exchange endpoints. Rates are public.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler, jwt, idempotent fiber.Handler) {
	group := r.Group("/transactions")
	group.Get("/rates", h.Rates)
	group.Get("/", jwt, h.List)
	group.Post("/", jwt, idempotent, h.Create)
	group.Post("/on-ramp", jwt, idempotent, h.CreateOnRamp)
	group.Post("/off-ramp", jwt, idempotent, h.CreateOffRamp)
	group.Get("/:id", jwt, h.Get)
}
