package wallet

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func memoryKey(userID, currency string) string {
	return userID + "/" + strings.ToUpper(currency)
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memoryKey(wallet.UserID, wallet.Currency)
	if _, exists := r.storage[key]; exists {
		return ErrWalletExists
	}
	r.storage[key] = wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, userID, currency string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[memoryKey(userID, currency)]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var wallets []Wallet
	for _, w := range r.storage {
		if w.UserID == userID {
			wallets = append(wallets, w)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Currency < wallets[j].Currency })
	return wallets, nil
}

func (r *memoryRepository) SetAddress(_ context.Context, userID, currency, address string) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memoryKey(userID, currency)
	wallet, ok := r.storage[key]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	wallet.WalletAddress = address
	r.storage[key] = wallet
	return wallet, nil
}
