package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/ledger"
)

var (
	// ErrInvalidOperation rejects balance adjustments other than add or subtract.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrAddressUnsupported is returned for wallets that cannot hold an on-chain address.
	ErrAddressUnsupported = errors.New("invalid currency for address generation")
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	now    func() time.Time
}

// NewService builds a wallet service instance.
func NewService(repo Repository, l ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: l, now: time.Now}
}

// DefaultCurrencies lists the wallets opened for a new user.
func DefaultCurrencies(localCurrency string) []string {
	return []string{"USDT", "USDC", strings.ToUpper(localCurrency)}
}

// CreateDefaults opens the USDT, USDC and local-currency wallets of a new user
// with a zero balance. Wallets that already exist are kept.
func (s *Service) CreateDefaults(ctx context.Context, userID, localCurrency string) ([]Wallet, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	for _, currency := range DefaultCurrencies(localCurrency) {
		if _, err := s.create(ctx, userID, currency); err != nil && !errors.Is(err, ErrWalletExists) {
			return nil, fmt.Errorf("create %s wallet: %w", currency, err)
		}
	}
	return s.List(ctx, userID)
}

func (s *Service) create(ctx context.Context, userID, currency string) (Wallet, error) {
	code := AccountCode(userID, currency)
	if err := s.ledger.EnsureAccount(ctx, code); err != nil {
		return Wallet{}, err
	}
	wallet := Wallet{
		ID:          uuid.NewString(),
		UserID:      userID,
		Currency:    strings.ToUpper(currency),
		AccountCode: code,
		Balance:     decimal.Zero,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// List returns the user's wallets with their ledger balances.
func (s *Service) List(ctx context.Context, userID string) ([]Wallet, error) {
	wallets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range wallets {
		if err := s.fillBalance(ctx, &wallets[i]); err != nil {
			return nil, err
		}
	}
	if wallets == nil {
		wallets = []Wallet{}
	}
	return wallets, nil
}

// Get returns one wallet with its balance.
func (s *Service) Get(ctx context.Context, userID, currency string) (Wallet, error) {
	wallet, err := s.repo.Get(ctx, userID, currency)
	if err != nil {
		return Wallet{}, err
	}
	if err := s.fillBalance(ctx, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// Balance returns the available funds of a user's currency wallet.
func (s *Service) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	wallet, err := s.Get(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// Credit posts an idempotent credit to the user's wallet. A repeated
// (kind, reference) returns ledger.ErrDuplicatePosting without moving funds.
func (s *Service) Credit(ctx context.Context, userID, currency, kind, reference string, amount decimal.Decimal) (Wallet, error) {
	return s.post(ctx, userID, currency, ledger.Posting{Kind: kind, Reference: reference, Amount: amount}, true)
}

// Debit posts an idempotent debit that only applies when the balance covers it.
func (s *Service) Debit(ctx context.Context, userID, currency, kind, reference string, amount decimal.Decimal) (Wallet, error) {
	return s.post(ctx, userID, currency, ledger.Posting{Kind: kind, Reference: reference, Amount: amount}, false)
}

func (s *Service) post(ctx context.Context, userID, currency string, p ledger.Posting, credit bool) (Wallet, error) {
	wallet, err := s.repo.Get(ctx, userID, currency)
	if err != nil {
		return Wallet{}, err
	}
	p.AccountCode = wallet.AccountCode

	var res ledger.PostingResult
	if credit {
		res, err = s.ledger.Credit(ctx, p)
	} else {
		res, err = s.ledger.Debit(ctx, p)
	}
	if err != nil && !errors.Is(err, ledger.ErrDuplicatePosting) {
		return Wallet{}, err
	}
	if fillErr := s.fillBalance(ctx, &wallet); fillErr != nil {
		wallet.Balance = res.Balance
	}
	return wallet, err
}

// Posted reports whether a posting with the kind and reference was applied.
func (s *Service) Posted(ctx context.Context, kind, reference string) (bool, error) {
	return s.ledger.Posted(ctx, kind, reference)
}

// Adjust applies a manual add or subtract to the user's wallet. A non-empty
// key makes retries of the same request safe; it is scoped to the user and
// currency so equal keys from different callers never collide.
func (s *Service) Adjust(ctx context.Context, userID, currency, operation string, amount decimal.Decimal, key string) (Wallet, error) {
	if key == "" {
		key = uuid.NewString()
	}
	reference := adjustReference(userID, currency, key)
	switch operation {
	case OperationAdd:
		return s.Credit(ctx, userID, currency, ledger.KindManualCredit, reference, amount)
	case OperationSubtract:
		return s.Debit(ctx, userID, currency, ledger.KindManualDebit, reference, amount)
	default:
		return Wallet{}, ErrInvalidOperation
	}
}

func adjustReference(userID, currency, key string) string {
	return userID + ":" + currency + ":" + key
}

// GenerateAddress stores a fabricated on-chain address on a USDT or USDC wallet.
func (s *Service) GenerateAddress(ctx context.Context, userID, currency string) (Wallet, error) {
	if !IsCrypto(currency) {
		return Wallet{}, ErrAddressUnsupported
	}
	address, err := RandomHex(20)
	if err != nil {
		return Wallet{}, err
	}
	wallet, err := s.repo.SetAddress(ctx, userID, currency, "0x"+address)
	if err != nil {
		return Wallet{}, err
	}
	if err := s.fillBalance(ctx, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) fillBalance(ctx context.Context, w *Wallet) error {
	balance, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return err
	}
	w.Balance = balance
	return nil
}
