package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/auth"
)

// RegisterAuthRoutes wires the OTP login endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, jwt, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/send-otp", rateLimiter, h.SendOTP)
	group.Post("/verify-otp", h.VerifyOTP)
	group.Get("/me", jwt, h.Me)
}
