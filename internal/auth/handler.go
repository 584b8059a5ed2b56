package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/middleware"
)

// Handler exposes the OTP login endpoints.
type Handler struct {
	svc        *Service
	exposeCode bool
	logger     *slog.Logger
}

// NewHandler builds the auth handler. With exposeCode the issued OTP is
// echoed in the send-otp response, which is only acceptable outside production.
func NewHandler(svc *Service, exposeCode bool, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, exposeCode: exposeCode, logger: logger}
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

type verifyOTPRequest struct {
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"omitempty,email"`
	OTP       string `json:"otp" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"`
}

type profile struct {
	ID        string `json:"id"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"`
	KYCStatus string `json:"kycStatus"`
	Role      string `json:"role"`
}

func profileOf(u identity.User) profile {
	return profile{
		ID:        u.ID,
		Phone:     u.Phone,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Country:   u.Country,
		KYCStatus: u.KYCStatus,
		Role:      u.Role,
	}
}

// SendOTP issues a login code.
func (h *Handler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Invalid request data", errs)
	}
	code, err := h.svc.SendOTP(c.UserContext(), req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrMissingContact) {
			return fiber.NewError(http.StatusBadRequest, "Phone number or email required")
		}
		h.logger.Error("send otp failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to send OTP")
	}
	resp := fiber.Map{"success": true, "message": "OTP sent successfully"}
	if h.exposeCode {
		resp["otp"] = code
	}
	return c.JSON(resp)
}

// VerifyOTP logs a user in, registering them on first use.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if errs := middleware.ValidateRequest(req); errs != nil {
		return middleware.RespondWithValidationError(c, "Invalid request data", errs)
	}
	login, err := h.svc.VerifyOTP(c.UserContext(), VerifyInput{
		Phone:     req.Phone,
		Email:     req.Email,
		OTP:       req.OTP,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidOTP):
		return fiber.NewError(http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, ErrOTPNotRequested):
		return fiber.NewError(http.StatusBadRequest, "OTP expired or not requested")
	case errors.Is(err, identity.ErrMissingContact):
		return fiber.NewError(http.StatusBadRequest, "Phone number or email required")
	case errors.Is(err, identity.ErrMissingProfile):
		return fiber.NewError(http.StatusBadRequest, "First name, last name, and country required for registration")
	case errors.Is(err, identity.ErrInvalidCountry):
		return fiber.NewError(http.StatusBadRequest, "Invalid country")
	default:
		h.logger.Error("verify otp failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Authentication failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   login.Token,
		"user":    profileOf(login.User),
		"wallets": login.Wallets,
	})
}

// Me returns the authenticated user and wallets.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, wallets, err := h.svc.Me(c.UserContext(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		h.logger.Error("load session user failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "Failed to fetch user data")
	}
	return c.JSON(fiber.Map{"user": profileOf(user), "wallets": wallets})
}
