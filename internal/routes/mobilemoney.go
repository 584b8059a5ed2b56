package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/mobilemoney"
)

// RegisterMobileMoneyRoutes wires the simulated provider endpoints.
func RegisterMobileMoneyRoutes(r fiber.Router, h *mobilemoney.Handler) {
	group := r.Group("/mobile-money")
	group.Post("/initiate-payment", h.InitiatePayment)
	group.Post("/send-payout", h.SendPayout)
	group.Get("/status/:reference", h.Status)
}
