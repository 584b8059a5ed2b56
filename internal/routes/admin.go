package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/admin"
	"github.com/nanolink/nanolink/internal/middleware"
)

// RegisterAdminRoutes wires the operator endpoints behind the admin role check.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler, jwt fiber.Handler) {
	group := r.Group("/admin", jwt, middleware.RequireAdmin())
	group.Get("/stats", h.Stats)
	group.Get("/transactions", h.Transactions)
	group.Put("/transactions/:id/status", h.UpdateTransactionStatus)
	group.Get("/users", h.Users)
	group.Put("/users/:id/kyc", h.UpdateKYC)
}
