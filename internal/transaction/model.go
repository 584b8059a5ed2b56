package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeOnRamp   = "on_ramp"
	TypeOffRamp  = "off_ramp"
	TypeTransfer = "transfer"
)

// Transaction statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Transaction records one exchange between mobile money and crypto.
type Transaction struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	Type                 string          `json:"type"`
	Status               string          `json:"status"`
	FromCurrency         string          `json:"from_currency"`
	ToCurrency           string          `json:"to_currency"`
	FromAmount           decimal.Decimal `json:"from_amount"`
	ToAmount             decimal.Decimal `json:"to_amount"`
	ExchangeRate         decimal.Decimal `json:"exchange_rate"`
	Fees                 decimal.Decimal `json:"fees"`
	PaymentMethod        string          `json:"payment_method"`
	RecipientPhone       string          `json:"recipient_phone,omitempty"`
	MobileMoneyReference string          `json:"mobile_money_reference,omitempty"`
	CryptoTxHash         string          `json:"crypto_tx_hash,omitempty"`
	AdminNotes           string          `json:"admin_notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Terminal reports whether the transaction can no longer change status.
func (t Transaction) Terminal() bool {
	return IsTerminal(t.Status)
}

// Patch carries the optional fields written together with a status change.
type Patch struct {
	MobileMoneyReference *string
	CryptoTxHash         *string
	AdminNotes           *string
}

// Filter narrows transaction listings. Zero values match everything.
type Filter struct {
	UserID string
	Status string
	Type   string
	Limit  int
	Offset int
}

// ValidStatus reports whether status is a known transaction status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether a transaction of txType may move from one
// status to another. Only on-ramps return from processing to pending, where
// they wait for settlement.
func CanTransition(txType, from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		if to == StatusPending {
			return txType == TypeOnRamp
		}
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

func strPtr(s string) *string { return &s }
