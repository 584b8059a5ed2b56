package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/wallet"
)

// RegisterWalletRoutes wires the caller's wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, jwt, idempotent fiber.Handler) {
	group := r.Group("/wallets", jwt)
	group.Get("/", h.List)
	group.Put("/:currency/balance", idempotent, h.AdjustBalance)
	group.Post("/:currency/address", h.GenerateAddress)
}
