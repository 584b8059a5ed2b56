package identity

import (
	"strings"
	"time"
)

// Supported countries.
const (
	CountryKenya    = "kenya"
	CountryUganda   = "uganda"
	CountryTanzania = "tanzania"
	CountrySomalia  = "somalia"
)

// KYC statuses.
const (
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var localCurrencies = map[string]string{
	CountryKenya:    "KES",
	CountryUganda:   "UGX",
	CountryTanzania: "TZS",
	CountrySomalia:  "SOS",
}

// User represents a registered exchange customer or operator.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Country   string    `json:"country"`
	KYCStatus string    `json:"kyc_status"`
	KYCNotes  string    `json:"kyc_notes,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user may call admin endpoints.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Identifier returns the phone number, or the email when no phone is set.
func (u User) Identifier() string {
	if u.Phone != "" {
		return u.Phone
	}
	return u.Email
}

// Registration captures the profile required to create a user on first login.
type Registration struct {
	Phone     string
	Email     string
	FirstName string
	LastName  string
	Country   string
}

// ListFilter narrows admin user listings.
type ListFilter struct {
	Country      string
	KYCStatus    string
	ExcludeAdmin bool
	Limit        int
	Offset       int
}

// ValidCountry reports whether the country is one the exchange operates in.
func ValidCountry(country string) bool {
	_, ok := localCurrencies[strings.ToLower(country)]
	return ok
}

// LocalCurrency maps a country to its mobile-money currency. Unknown countries
// map to SOS, matching the registration fallback.
func LocalCurrency(country string) string {
	if c, ok := localCurrencies[strings.ToLower(country)]; ok {
		return c
	}
	return "SOS"
}

// ValidKYCStatus reports whether status is a known KYC state.
func ValidKYCStatus(status string) bool {
	switch status {
	case KYCPending, KYCApproved, KYCRejected:
		return true
	}
	return false
}
