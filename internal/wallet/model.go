package wallet

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the metadata of one currency account of a user. The balance
// lives in the ledger under AccountCode.
type Wallet struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Currency      string          `json:"currency"`
	AccountCode   string          `json:"-"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Operations accepted by Adjust.
const (
	OperationAdd      = "add"
	OperationSubtract = "subtract"
)

var cryptoCurrencies = map[string]bool{"USDT": true, "USDC": true}

// IsCrypto reports whether the currency is an on-chain asset that can carry an address.
func IsCrypto(currency string) bool {
	return cryptoCurrencies[strings.ToUpper(currency)]
}

// AccountCode derives the ledger account of a user's currency wallet.
func AccountCode(userID, currency string) string {
	return fmt.Sprintf("wallet:%s:%s", userID, strings.ToUpper(currency))
}
