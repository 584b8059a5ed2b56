package mobilemoney

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/middleware"
)

// Handler exposes the simulated provider endpoints.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler builds the mobile-money handler.
func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

type providerRequest struct {
	Provider  string           `json:"provider" validate:"required"`
	Phone     string           `json:"phone" validate:"required"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Reference string           `json:"reference" validate:"required"`
}

func (h *Handler) parse(c *fiber.Ctx) (providerRequest, Provider, error) {
	var req providerRequest
	if err := c.BodyParser(&req); err != nil {
		return req, nil, fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil || !req.Amount.IsPositive() {
		return req, nil, fiber.NewError(http.StatusBadRequest, "Missing required fields")
	}
	p, err := h.registry.Lookup(req.Provider)
	if err != nil {
		return req, nil, err
	}
	return req, p, nil
}

// InitiatePayment asks a provider to collect funds from a phone.
func (h *Handler) InitiatePayment(c *fiber.Ctx) error {
	req, p, err := h.parse(c)
	if errors.Is(err, ErrUnsupportedProvider) {
		return fiber.NewError(http.StatusBadRequest, "Unsupported payment provider")
	}
	if err != nil {
		return err
	}
	res, err := p.InitiatePayment(c.UserContext(), Request{Phone: req.Phone, Amount: *req.Amount, Reference: req.Reference})
	if err != nil {
		h.logger.Error("initiate payment failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to initiate payment")
	}
	return c.JSON(res)
}

// SendPayout asks a provider to pay funds out to a phone.
func (h *Handler) SendPayout(c *fiber.Ctx) error {
	req, p, err := h.parse(c)
	if errors.Is(err, ErrUnsupportedProvider) {
		return fiber.NewError(http.StatusBadRequest, "Unsupported payout provider")
	}
	if err != nil {
		return err
	}
	res, err := p.SendPayout(c.UserContext(), Request{Phone: req.Phone, Amount: *req.Amount, Reference: req.Reference})
	if err != nil {
		h.logger.Error("send payout failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to send payout")
	}
	return c.JSON(res)
}

// Status reports the simulated state of a payment. The optional provider
// query parameter selects the network; the first registered one is used otherwise.
func (h *Handler) Status(c *fiber.Ctx) error {
	name := c.Query("provider")
	if name == "" {
		if names := h.registry.Names(); len(names) > 0 {
			name = names[0]
		}
	}
	p, err := h.registry.Lookup(name)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "Unsupported payment provider")
	}
	res, err := p.CheckStatus(c.UserContext(), c.Params("reference"))
	if err != nil {
		h.logger.Error("check status failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to check payment status")
	}
	return c.JSON(res)
}
