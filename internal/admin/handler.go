package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/middleware"
	"github.com/nanolink/nanolink/internal/transaction"
)

// Handler exposes the operator endpoints. Routes must sit behind
// middleware.RequireAdmin.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds an admin HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type statusRequest struct {
	Status     string `json:"status" validate:"required"`
	AdminNotes string `json:"adminNotes"`
}

type kycRequest struct {
	KYCStatus  string `json:"kycStatus" validate:"required"`
	AdminNotes string `json:"adminNotes"`
}

// Stats returns dashboard counters.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		h.logger.Error("admin stats failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch stats")
	}
	return c.JSON(stats)
}

// Transactions lists transactions across users.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	filter := transaction.Filter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
	}
	filter.Limit, filter.Offset = page(c)
	views, err := h.service.Transactions(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("admin transactions failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch transactions")
	}
	return c.JSON(fiber.Map{"transactions": views})
}

// UpdateTransactionStatus overrides a transaction's status.
func (h *Handler) UpdateTransactionStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Invalid status", errs)
	}

	tx, err := h.service.UpdateTransactionStatus(c.UserContext(), c.Params("id"), strings.ToLower(req.Status), req.AdminNotes)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "transaction": tx})
	case errors.Is(err, transaction.ErrInvalidStatus):
		return fiber.NewError(http.StatusBadRequest, "Invalid status")
	case errors.Is(err, transaction.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Transaction not found")
	case errors.Is(err, transaction.ErrInvalidTransition):
		return fiber.NewError(http.StatusBadRequest, "Invalid status transition")
	case errors.Is(err, transaction.ErrSettlementRejected):
		return fiber.NewError(http.StatusBadRequest, "Insufficient balance to settle transaction")
	case errors.Is(err, transaction.ErrStatusConflict):
		return fiber.NewError(http.StatusConflict, "Transaction was updated concurrently")
	default:
		h.logger.Error("admin status update failed", slog.String("transaction_id", c.Params("id")), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to update transaction")
	}
}

// Users lists users with their wallets.
func (h *Handler) Users(c *fiber.Ctx) error {
	filter := identity.ListFilter{
		Country:   strings.ToLower(c.Query("country")),
		KYCStatus: strings.ToLower(c.Query("kycStatus")),
	}
	filter.Limit, filter.Offset = page(c)
	users, err := h.service.Users(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("admin users failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch users")
	}
	return c.JSON(fiber.Map{"users": users})
}

// UpdateKYC records a KYC decision.
func (h *Handler) UpdateKYC(c *fiber.Ctx) error {
	var req kycRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Invalid KYC status", errs)
	}

	user, err := h.service.UpdateKYC(c.UserContext(), c.Params("id"), strings.ToLower(req.KYCStatus), req.AdminNotes)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "user": user})
	case errors.Is(err, identity.ErrInvalidKYCStatus):
		return fiber.NewError(http.StatusBadRequest, "Invalid KYC status")
	case errors.Is(err, identity.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	default:
		h.logger.Error("admin kyc update failed", slog.String("user_id", c.Params("id")), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to update KYC status")
	}
}

// page reads limit and offset, falling back to the default page size and a
// zero offset for missing or negative values.
func page(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", DefaultPageSize)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
