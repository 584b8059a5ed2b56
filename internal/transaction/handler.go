package transaction

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/middleware"
)

// Handler exposes the caller-facing transaction endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Type             string           `json:"type"`
	FromAmount       *decimal.Decimal `json:"fromAmount" validate:"required"`
	FromCurrency     string           `json:"fromCurrency" validate:"required"`
	ToCurrency       string           `json:"toCurrency" validate:"required"`
	PaymentMethod    string           `json:"paymentMethod" validate:"required"`
	MobileMoneyPhone string           `json:"mobileMoneyPhone"`
	RecipientPhone   string           `json:"recipientPhone"`
}

func (r createRequest) input(txType string) CreateInput {
	in := CreateInput{
		Type:          txType,
		FromCurrency:  r.FromCurrency,
		ToCurrency:    r.ToCurrency,
		PaymentMethod: r.PaymentMethod,
		Phone:         r.MobileMoneyPhone,
	}
	if r.FromAmount != nil {
		in.FromAmount = *r.FromAmount
	}
	if txType == TypeOffRamp {
		in.Phone = r.RecipientPhone
	}
	return in
}

// Create dispatches on the body's type field.
func (h *Handler) Create(c *fiber.Ctx) error {
	return h.create(c, "")
}

// CreateOnRamp starts a mobile money to crypto purchase.
func (h *Handler) CreateOnRamp(c *fiber.Ctx) error {
	return h.create(c, TypeOnRamp)
}

// CreateOffRamp starts a crypto to mobile money sale.
func (h *Handler) CreateOffRamp(c *fiber.Ctx) error {
	return h.create(c, TypeOffRamp)
}

func (h *Handler) create(c *fiber.Ctx, txType string) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Missing required fields", errs)
	}
	if txType == "" {
		txType = req.Type
	}

	tx, err := h.service.Create(c.UserContext(), middleware.UserID(c), req.input(txType))
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingFields):
		return fiber.NewError(http.StatusBadRequest, "Missing required fields")
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "Amount must be greater than 0")
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, ErrUnsupportedType):
		return fiber.NewError(http.StatusBadRequest, "Unsupported transaction type")
	case errors.Is(err, ErrRateUnavailable):
		return fiber.NewError(http.StatusBadRequest, "Exchange rate unavailable")
	default:
		h.logger.Error("create transaction failed", slog.String("type", txType), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to create transaction")
	}

	message := "On-ramp transaction initiated"
	if tx.Type == TypeOffRamp {
		message = "Off-ramp transaction initiated"
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"transaction": tx,
		"message":     message,
	})
}

// List returns the caller's transactions.
func (h *Handler) List(c *fiber.Ctx) error {
	txs, err := h.service.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list transactions failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch transactions")
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

// Get returns one of the caller's transactions.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.service.Get(c.UserContext(), middleware.UserID(c), c.Params("id"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"transaction": tx})
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Transaction not found")
	default:
		h.logger.Error("get transaction failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch transaction")
	}
}

// Rates returns the exchange-rate table.
func (h *Handler) Rates(c *fiber.Ctx) error {
	table, err := h.service.Rates(c.UserContext())
	if err != nil {
		h.logger.Error("load rates failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch rates")
	}
	return c.JSON(fiber.Map{"rates": table})
}
