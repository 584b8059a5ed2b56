package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Session is the authenticated principal resolved from a bearer token.
type Session struct {
	UserID string
	Role   string
}

// SessionResolver verifies a bearer token and loads the principal behind it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (Session, error)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// principal in the request locals.
func JWTAuth(resolver SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Access token required")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		session, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusForbidden, "Invalid or expired token")
		}
		c.Locals(LocalUserID, session.UserID)
		c.Locals(LocalRole, session.Role)
		return c.Next()
	}
}

// RequireAdmin only lets admin principals through. It must run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals(LocalRole).(string); role != "admin" {
			return fiber.NewError(http.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" on public routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
