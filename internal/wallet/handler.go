package wallet

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/ledger"
	"github.com/nanolink/nanolink/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type adjustRequest struct {
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Operation string           `json:"operation" validate:"required"`
}

// List returns the caller's wallets.
func (h *Handler) List(c *fiber.Ctx) error {
	wallets, err := h.service.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list wallets failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch wallets")
	}
	return c.JSON(fiber.Map{"wallets": wallets})
}

// AdjustBalance adds to or subtracts from one of the caller's wallets.
func (h *Handler) AdjustBalance(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Amount and operation required", errs)
	}

	currency := strings.ToUpper(c.Params("currency"))
	key := c.Get("Idempotency-Key")
	wallet, err := h.service.Adjust(c.UserContext(), middleware.UserID(c), currency, req.Operation, *req.Amount, key)
	switch {
	case err == nil, errors.Is(err, ledger.ErrDuplicatePosting):
		return c.JSON(fiber.Map{"wallet": wallet})
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "Wallet not found")
	case errors.Is(err, ErrInvalidOperation):
		return fiber.NewError(http.StatusBadRequest, "Invalid operation")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "Amount must be greater than 0")
	default:
		h.logger.Error("adjust wallet failed", slog.String("currency", currency), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to update wallet balance")
	}
}

// GenerateAddress assigns an on-chain address to a crypto wallet.
func (h *Handler) GenerateAddress(c *fiber.Ctx) error {
	currency := strings.ToUpper(c.Params("currency"))
	wallet, err := h.service.GenerateAddress(c.UserContext(), middleware.UserID(c), currency)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"address": wallet.WalletAddress, "wallet": wallet})
	case errors.Is(err, ErrAddressUnsupported):
		return fiber.NewError(http.StatusBadRequest, "Invalid currency for address generation")
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "Wallet not found")
	default:
		h.logger.Error("generate address failed", slog.String("currency", currency), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to generate wallet address")
	}
}
