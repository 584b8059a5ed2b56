package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/middleware"
	"github.com/nanolink/nanolink/internal/wallet"
)

// Service runs the OTP login flow and resolves session tokens.
type Service struct {
	ids     *identity.Service
	wallets *wallet.Service
	otp     *OTPIssuer
	tokens  *TokenManager
	logger  *slog.Logger
}

// NewService wires the auth service.
func NewService(ids *identity.Service, wallets *wallet.Service, otp *OTPIssuer, tokens *TokenManager, logger *slog.Logger) *Service {
	return &Service{ids: ids, wallets: wallets, otp: otp, tokens: tokens, logger: logger}
}

// VerifyInput is a login attempt. The profile fields are only needed on first login.
type VerifyInput struct {
	Phone     string
	Email     string
	OTP       string
	FirstName string
	LastName  string
	Country   string
}

// Login is the outcome of a successful OTP verification.
type Login struct {
	Token   string
	User    identity.User
	Wallets []wallet.Wallet
	Created bool
}

// SendOTP issues a code for the phone or email. Delivery is simulated by a log line.
func (s *Service) SendOTP(ctx context.Context, phone, email string) (string, error) {
	subject := firstNonEmpty(phone, email)
	if subject == "" {
		return "", identity.ErrMissingContact
	}
	code, err := s.otp.Issue(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	s.logger.Info("otp issued", slog.String("subject", subject))
	return code, nil
}

// VerifyOTP checks the code, registering the user with default wallets on
// first login, and returns a signed session. The code is consumed only once
// the user exists, so a first login missing its profile can be retried.
func (s *Service) VerifyOTP(ctx context.Context, in VerifyInput) (Login, error) {
	subject := firstNonEmpty(in.Phone, in.Email)
	if subject == "" {
		return Login{}, identity.ErrMissingContact
	}
	if err := s.otp.Check(ctx, subject, in.OTP); err != nil {
		return Login{}, err
	}

	var created bool
	user, err := s.ids.Lookup(ctx, in.Phone, in.Email)
	if errors.Is(err, identity.ErrUserNotFound) {
		user, err = s.ids.Register(ctx, identity.Registration{
			Phone:     in.Phone,
			Email:     in.Email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Country:   in.Country,
		})
		if err != nil {
			return Login{}, err
		}
		if _, err := s.wallets.CreateDefaults(ctx, user.ID, identity.LocalCurrency(user.Country)); err != nil {
			return Login{}, fmt.Errorf("create default wallets: %w", err)
		}
		created = true
		s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("country", user.Country), slog.String("role", user.Role))
	} else if err != nil {
		return Login{}, err
	}
	if err := s.otp.Consume(ctx, subject); err != nil {
		return Login{}, fmt.Errorf("consume otp: %w", err)
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return Login{}, fmt.Errorf("issue token: %w", err)
	}
	wallets, err := s.wallets.List(ctx, user.ID)
	if err != nil {
		return Login{}, err
	}
	return Login{Token: token, User: user, Wallets: wallets, Created: created}, nil
}

// Me returns the user and wallets behind a session.
func (s *Service) Me(ctx context.Context, userID string) (identity.User, []wallet.Wallet, error) {
	user, err := s.ids.Get(ctx, userID)
	if err != nil {
		return identity.User{}, nil, err
	}
	wallets, err := s.wallets.List(ctx, userID)
	if err != nil {
		return identity.User{}, nil, err
	}
	return user, wallets, nil
}

// Resolve verifies a bearer token and loads the current role of its user.
func (s *Service) Resolve(ctx context.Context, token string) (middleware.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return middleware.Session{}, err
	}
	user, err := s.ids.Get(ctx, claims.UserID)
	if err != nil {
		return middleware.Session{}, ErrInvalidToken
	}
	return middleware.Session{UserID: user.ID, Role: user.Role}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
