package admin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/transaction"
)

// volumeWindow is the trailing period summed into TotalVolume30d.
const volumeWindow = 30 * 24 * time.Hour

// UserStats counts customers, operators excluded.
type UserStats struct {
	Total      int            `json:"total"`
	PendingKYC int            `json:"pending_kyc"`
	Approved   int            `json:"approved"`
	ByCountry  map[string]int `json:"by_country"`
}

// TransactionStats counts transactions and recent completed volume.
type TransactionStats struct {
	Total          int             `json:"total"`
	Pending        int             `json:"pending"`
	Completed      int             `json:"completed"`
	TotalVolume30d decimal.Decimal `json:"total_volume_30d"`
}

// Stats is the dashboard summary.
type Stats struct {
	Users        UserStats        `json:"users"`
	Transactions TransactionStats `json:"transactions"`
}

// Aggregate computes dashboard stats by scanning the given rows. The volume is
// the sum of to_amount over completed transactions created in the trailing 30
// days, regardless of currency.
func Aggregate(users []identity.User, txs []transaction.Transaction, now time.Time) Stats {
	stats := Stats{
		Users:        UserStats{ByCountry: map[string]int{}},
		Transactions: TransactionStats{TotalVolume30d: decimal.Zero},
	}
	for _, u := range users {
		if u.IsAdmin() {
			continue
		}
		stats.Users.Total++
		switch u.KYCStatus {
		case identity.KYCPending:
			stats.Users.PendingKYC++
		case identity.KYCApproved:
			stats.Users.Approved++
		}
		stats.Users.ByCountry[u.Country]++
	}

	cutoff := now.Add(-volumeWindow)
	for _, tx := range txs {
		stats.Transactions.Total++
		switch tx.Status {
		case transaction.StatusPending:
			stats.Transactions.Pending++
		case transaction.StatusCompleted:
			stats.Transactions.Completed++
			if !tx.CreatedAt.Before(cutoff) {
				stats.Transactions.TotalVolume30d = stats.Transactions.TotalVolume30d.Add(tx.ToAmount)
			}
		}
	}
	return stats
}
