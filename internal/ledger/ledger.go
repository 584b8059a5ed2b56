package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would take an account below zero.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrDuplicatePosting indicates a posting with the same kind and reference was
	// already applied. The returned PostingResult describes the original posting.
	ErrDuplicatePosting = errors.New("duplicate posting")

	// ErrAccountNotFound is returned for unknown account codes.
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrInvalidAmount rejects zero or negative posting amounts.
	ErrInvalidAmount = errors.New("amount must be greater than 0")
)

// Posting kinds. Together with a reference they form the idempotency key of a
// balance mutation.
const (
	KindOnRampSettlement = "on_ramp_settlement"
	KindOffRampDebit     = "off_ramp_debit"
	KindOffRampRefund    = "off_ramp_refund"
	KindManualCredit     = "manual_credit"
	KindManualDebit      = "manual_debit"
)

// Posting describes one balance mutation against an account.
type Posting struct {
	AccountCode string
	Kind        string
	Reference   string
	Amount      decimal.Decimal
}

// PostingResult captures the outcome of a posting.
type PostingResult struct {
	EntryID  string
	Balance  decimal.Decimal
	PostedAt time.Time
}

// Ledger defines the contract implemented by balance backends. Debit must be a
// single conditional mutation: it either applies in full with the balance
// staying >= 0 or fails with ErrInsufficientFunds.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (decimal.Decimal, error)
	Credit(ctx context.Context, p Posting) (PostingResult, error)
	Debit(ctx context.Context, p Posting) (PostingResult, error)
	Posted(ctx context.Context, kind, reference string) (bool, error)
}

func validatePosting(p Posting) error {
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.AccountCode == "" || p.Kind == "" || p.Reference == "" {
		return errors.New("posting requires account code, kind and reference")
	}
	return nil
}

func postingKey(kind, reference string) string {
	return kind + ":" + reference
}
