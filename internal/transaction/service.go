package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/ledger"
	"github.com/nanolink/nanolink/internal/mobilemoney"
	"github.com/nanolink/nanolink/internal/notification"
	"github.com/nanolink/nanolink/internal/rates"
	"github.com/nanolink/nanolink/internal/settlement"
	"github.com/nanolink/nanolink/internal/wallet"
)

var (
	// ErrMissingFields is returned when a required request field is empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	// ErrInsufficientBalance is returned when the source wallet cannot cover an off-ramp.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnsupportedType is returned for transaction types without a flow.
	ErrUnsupportedType = errors.New("unsupported transaction type")
	// ErrInvalidStatus rejects unknown statuses.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition is returned when a status change breaks the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSettlementRejected is returned when a manual completion cannot move funds.
	ErrSettlementRejected = errors.New("settlement rejected")
	// ErrRateUnavailable is returned when the pair has no usable exchange rate.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

// Options configure the transaction service.
type Options struct {
	// SettlementDelay is how long an initiated on-ramp waits before it is settled.
	SettlementDelay time.Duration
	Notifier        notification.Notifier
	Logger          *slog.Logger
}

// Service creates transactions and drives them to a terminal status.
type Service struct {
	repo        Repository
	wallets     *wallet.Service
	rates       rates.Source
	providers   *mobilemoney.Registry
	queue       settlement.Queue
	notifier    notification.Notifier
	logger      *slog.Logger
	settleDelay time.Duration
	now         func() time.Time
}

// NewService wires the transaction service.
func NewService(repo Repository, wallets *wallet.Service, rateSource rates.Source, providers *mobilemoney.Registry, queue settlement.Queue, opts Options) *Service {
	if opts.SettlementDelay <= 0 {
		opts.SettlementDelay = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notification.NewLoggerNotifier(opts.Logger)
	}
	return &Service{
		repo:        repo,
		wallets:     wallets,
		rates:       rateSource,
		providers:   providers,
		queue:       queue,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		settleDelay: opts.SettlementDelay,
		now:         time.Now,
	}
}

// CreateInput is an exchange request. Phone is the payer for on-ramps and the
// payout recipient for off-ramps.
type CreateInput struct {
	Type          string
	FromAmount    decimal.Decimal
	FromCurrency  string
	ToCurrency    string
	PaymentMethod string
	Phone         string
}

func (in CreateInput) normalized() CreateInput {
	in.FromCurrency = strings.ToUpper(strings.TrimSpace(in.FromCurrency))
	in.ToCurrency = strings.ToUpper(strings.TrimSpace(in.ToCurrency))
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// Create dispatches on the request type.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Transaction, error) {
	switch in.Type {
	case TypeOnRamp:
		return s.CreateOnRamp(ctx, userID, in)
	case TypeOffRamp:
		return s.CreateOffRamp(ctx, userID, in)
	case "":
		return Transaction{}, ErrMissingFields
	default:
		return Transaction{}, ErrUnsupportedType
	}
}

// CreateOnRamp records a mobile money to crypto purchase and queues its processing.
func (s *Service) CreateOnRamp(ctx context.Context, userID string, in CreateInput) (Transaction, error) {
	in = in.normalized()
	if in.FromAmount.IsZero() || in.FromCurrency == "" || in.ToCurrency == "" || in.PaymentMethod == "" {
		return Transaction{}, ErrMissingFields
	}
	if in.FromAmount.IsNegative() {
		return Transaction{}, ErrInvalidAmount
	}
	rate, err := s.rates.Rate(ctx, in.FromCurrency, in.ToCurrency)
	if err != nil {
		return Transaction{}, fmt.Errorf("lookup rate: %w", err)
	}
	quote, err := rates.QuoteOnRamp(in.FromAmount, rate)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %s/%s: %w", ErrRateUnavailable, in.FromCurrency, in.ToCurrency, err)
	}
	return s.open(ctx, userID, TypeOnRamp, in, quote, settlement.KindProcessOnRamp)
}

// CreateOffRamp records a crypto to mobile money sale and queues its processing.
// The balance check here only rejects obvious overdrafts; the debit itself is
// the authoritative check.
func (s *Service) CreateOffRamp(ctx context.Context, userID string, in CreateInput) (Transaction, error) {
	in = in.normalized()
	if in.FromAmount.IsZero() || in.FromCurrency == "" || in.ToCurrency == "" || in.PaymentMethod == "" || in.Phone == "" {
		return Transaction{}, ErrMissingFields
	}
	if in.FromAmount.IsNegative() {
		return Transaction{}, ErrInvalidAmount
	}
	balance, err := s.wallets.Balance(ctx, userID, in.FromCurrency)
	if errors.Is(err, wallet.ErrWalletNotFound) || (err == nil && balance.LessThan(in.FromAmount)) {
		return Transaction{}, ErrInsufficientBalance
	}
	if err != nil {
		return Transaction{}, err
	}
	rate, err := s.rates.Rate(ctx, in.FromCurrency, in.ToCurrency)
	if err != nil {
		return Transaction{}, fmt.Errorf("lookup rate: %w", err)
	}
	quote, err := rates.QuoteOffRamp(in.FromAmount, rate)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %s/%s: %w", ErrRateUnavailable, in.FromCurrency, in.ToCurrency, err)
	}
	return s.open(ctx, userID, TypeOffRamp, in, quote, settlement.KindProcessOffRamp)
}

func (s *Service) open(ctx context.Context, userID, txType string, in CreateInput, q rates.Quote, taskKind string) (Transaction, error) {
	now := s.now().UTC()
	tx := Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           txType,
		Status:         StatusPending,
		FromCurrency:   in.FromCurrency,
		ToCurrency:     in.ToCurrency,
		FromAmount:     in.FromAmount,
		ToAmount:       q.ToAmount,
		ExchangeRate:   q.Rate,
		Fees:           q.Fees,
		PaymentMethod:  in.PaymentMethod,
		RecipientPhone: in.Phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	// A failed enqueue leaves the transaction pending; the recovery sweep picks it up.
	if err := s.queue.Schedule(ctx, settlement.Task{Kind: taskKind, TransactionID: tx.ID}, now); err != nil {
		s.logger.Error("enqueue settlement failed", slog.String("transaction_id", tx.ID), slog.Any("error", err))
	}
	s.logger.Info("transaction created",
		slog.String("transaction_id", tx.ID),
		slog.String("type", tx.Type),
		slog.String("from", tx.FromAmount.String()+" "+tx.FromCurrency),
		slog.String("to", tx.ToAmount.String()+" "+tx.ToCurrency),
	)
	return tx, nil
}

// List returns the user's transactions newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Transaction, error) {
	txs, err := s.repo.List(ctx, Filter{UserID: userID})
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Get returns one of the user's transactions.
func (s *Service) Get(ctx context.Context, userID, id string) (Transaction, error) {
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.UserID != userID {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

// Search returns transactions across users for operators.
func (s *Service) Search(ctx context.Context, filter Filter) ([]Transaction, error) {
	return s.repo.List(ctx, filter)
}

// Rates returns the current rate table.
func (s *Service) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return s.rates.Table(ctx)
}

// OverrideStatus applies an operator's status decision. Completing moves the
// funds the saga would have moved under the same idempotency keys, so a
// transaction is never settled twice. Failing an off-ramp refunds any debit.
func (s *Service) OverrideStatus(ctx context.Context, id, status, notes string) (Transaction, error) {
	if !ValidStatus(status) {
		return Transaction{}, ErrInvalidStatus
	}
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	sameStatus := status == tx.Status && !tx.Terminal()
	if !sameStatus && !CanTransition(tx.Type, tx.Status, status) {
		return Transaction{}, ErrInvalidTransition
	}

	var patch Patch
	if notes != "" {
		patch.AdminNotes = strPtr(notes)
	}
	if status == StatusCompleted {
		if err := s.settleManually(ctx, tx); err != nil {
			return Transaction{}, err
		}
		if tx.CryptoTxHash == "" {
			hash, err := fabricateTxHash()
			if err != nil {
				return Transaction{}, err
			}
			patch.CryptoTxHash = &hash
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, tx.Status, status, patch)
	if err != nil {
		return Transaction{}, err
	}
	if status == StatusFailed && updated.Type == TypeOffRamp {
		if err := s.refundIfDebited(ctx, updated); err != nil {
			return Transaction{}, err
		}
	}
	s.logger.Info("transaction status overridden",
		slog.String("transaction_id", id),
		slog.String("from", tx.Status),
		slog.String("to", status),
	)
	if updated.Terminal() && !sameStatus {
		s.notify(ctx, updated)
	}
	return updated, nil
}

func (s *Service) settleManually(ctx context.Context, tx Transaction) error {
	var err error
	switch tx.Type {
	case TypeOnRamp:
		_, err = s.wallets.Credit(ctx, tx.UserID, tx.ToCurrency, ledger.KindOnRampSettlement, tx.ID, tx.ToAmount)
	case TypeOffRamp:
		_, err = s.wallets.Debit(ctx, tx.UserID, tx.FromCurrency, ledger.KindOffRampDebit, tx.ID, tx.FromAmount)
	default:
		return nil
	}
	switch {
	case err == nil, errors.Is(err, ledger.ErrDuplicatePosting):
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, wallet.ErrWalletNotFound):
		return fmt.Errorf("%w: %v", ErrSettlementRejected, err)
	default:
		return err
	}
}

func (s *Service) notify(ctx context.Context, tx Transaction) {
	kind := notification.KindTransactionCompleted
	if tx.Status == StatusFailed {
		kind = notification.KindTransactionFailed
	}
	event := notification.Event{
		Kind:    kind,
		UserID:  tx.UserID,
		Subject: tx.ID,
		Data: map[string]any{
			"type":          tx.Type,
			"from_amount":   tx.FromAmount.String(),
			"from_currency": tx.FromCurrency,
			"to_amount":     tx.ToAmount.String(),
			"to_currency":   tx.ToCurrency,
			"admin_notes":   tx.AdminNotes,
		},
		OccurredAt: s.now().UTC(),
	}
	if err := s.notifier.Send(ctx, event); err != nil {
		s.logger.Warn("notification failed", slog.String("transaction_id", tx.ID), slog.Any("error", err))
	}
}

func fabricateTxHash() (string, error) {
	h, err := wallet.RandomHex(32)
	if err != nil {
		return "", err
	}
	return "0x" + h, nil
}
