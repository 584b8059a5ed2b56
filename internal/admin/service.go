package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/notification"
	"github.com/nanolink/nanolink/internal/transaction"
	"github.com/nanolink/nanolink/internal/wallet"
)

// DefaultPageSize applies when a listing has no limit.
const DefaultPageSize = 50

// UserSummary identifies the owner of a transaction in operator listings.
type UserSummary struct {
	ID        string `json:"id"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country"`
}

// TransactionView is a transaction with its owner.
type TransactionView struct {
	transaction.Transaction
	User *UserSummary `json:"user,omitempty"`
}

// UserView is a user with their wallets.
type UserView struct {
	identity.User
	Wallets []wallet.Wallet `json:"wallets"`
}

// Service backs the operator console.
type Service struct {
	users    *identity.Service
	wallets  *wallet.Service
	txs      *transaction.Service
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the admin service.
func NewService(users *identity.Service, wallets *wallet.Service, txs *transaction.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logger)
	}
	return &Service{users: users, wallets: wallets, txs: txs, notifier: notifier, logger: logger, now: time.Now}
}

// Stats scans every user and transaction into the dashboard summary.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := s.users.List(ctx, identity.ListFilter{ExcludeAdmin: true})
	if err != nil {
		return Stats{}, err
	}
	txs, err := s.txs.Search(ctx, transaction.Filter{})
	if err != nil {
		return Stats{}, err
	}
	return Aggregate(users, txs, s.now()), nil
}

// Transactions lists transactions across users with their owners attached.
func (s *Service) Transactions(ctx context.Context, filter transaction.Filter) ([]TransactionView, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	txs, err := s.txs.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	owners := map[string]*UserSummary{}
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		owner, seen := owners[tx.UserID]
		if !seen {
			if u, err := s.users.Get(ctx, tx.UserID); err == nil {
				owner = &UserSummary{
					ID:        u.ID,
					Phone:     u.Phone,
					Email:     u.Email,
					FirstName: u.FirstName,
					LastName:  u.LastName,
					Country:   u.Country,
				}
			}
			owners[tx.UserID] = owner
		}
		views = append(views, TransactionView{Transaction: tx, User: owner})
	}
	return views, nil
}

// UpdateTransactionStatus applies an operator's status decision.
func (s *Service) UpdateTransactionStatus(ctx context.Context, id, status, notes string) (transaction.Transaction, error) {
	return s.txs.OverrideStatus(ctx, id, status, notes)
}

// Users lists users with their wallets.
func (s *Service) Users(ctx context.Context, filter identity.ListFilter) ([]UserView, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		wallets, err := s.wallets.List(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, UserView{User: u, Wallets: wallets})
	}
	return views, nil
}

// UpdateKYC records a KYC decision and tells the user about it.
func (s *Service) UpdateKYC(ctx context.Context, id, status, notes string) (identity.User, error) {
	user, err := s.users.UpdateKYC(ctx, id, status, notes)
	if err != nil {
		return identity.User{}, err
	}
	s.logger.Info("kyc updated", slog.String("user_id", id), slog.String("kyc_status", status))
	event := notification.Event{
		Kind:       notification.KindKYCUpdated,
		UserID:     user.ID,
		Subject:    user.ID,
		Data:       map[string]any{"kyc_status": user.KYCStatus, "notes": notes},
		OccurredAt: s.now().UTC(),
	}
	if err := s.notifier.Send(ctx, event); err != nil {
		s.logger.Warn("kyc notification failed", slog.String("user_id", id), slog.Any("error", err))
	}
	return user, nil
}
