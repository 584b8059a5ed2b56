package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMissingProfile is returned when a first login lacks the names or country.
	ErrMissingProfile = errors.New("first name, last name and country are required for new users")
	// ErrInvalidCountry rejects countries outside the supported markets.
	ErrInvalidCountry = errors.New("invalid country")
	// ErrInvalidKYCStatus rejects unknown KYC states.
	ErrInvalidKYCStatus = errors.New("invalid KYC status")
	// ErrMissingContact is returned when neither phone nor email is supplied.
	ErrMissingContact = errors.New("phone or email is required")
)

// Service manages the user lifecycle.
type Service struct {
	repo       Repository
	adminPhone string
	now        func() time.Time
}

// NewService creates a new identity service. Users registering with
// adminPhone receive the admin role.
func NewService(repo Repository, adminPhone string) *Service {
	return &Service{repo: repo, adminPhone: adminPhone, now: time.Now}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Lookup finds the user registered with the phone or email.
func (s *Service) Lookup(ctx context.Context, phone, email string) (User, error) {
	phone, email = normalizeContact(phone, email)
	if phone == "" && email == "" {
		return User{}, ErrMissingContact
	}
	return s.repo.FindByContact(ctx, phone, email)
}

// Register creates a user with pending KYC.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	phone, email := normalizeContact(reg.Phone, reg.Email)
	if phone == "" && email == "" {
		return User{}, ErrMissingContact
	}
	first := strings.TrimSpace(reg.FirstName)
	last := strings.TrimSpace(reg.LastName)
	country := strings.ToLower(strings.TrimSpace(reg.Country))
	if first == "" || last == "" || country == "" {
		return User{}, ErrMissingProfile
	}
	if !ValidCountry(country) {
		return User{}, ErrInvalidCountry
	}

	role := RoleUser
	if phone != "" && phone == s.adminPhone {
		role = RoleAdmin
	}

	now := s.now().UTC()
	user := User{
		ID:        uuid.NewString(),
		Phone:     phone,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Country:   country,
		KYCStatus: KYCPending,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	return s.repo.List(ctx, filter)
}

// UpdateKYC records an operator's KYC decision.
func (s *Service) UpdateKYC(ctx context.Context, id, status, notes string) (User, error) {
	if !ValidKYCStatus(status) {
		return User{}, ErrInvalidKYCStatus
	}
	return s.repo.UpdateKYC(ctx, id, status, notes)
}

func normalizeContact(phone, email string) (string, string) {
	return strings.TrimSpace(phone), strings.ToLower(strings.TrimSpace(email))
}
