package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	postings map[string]PostingResult
}

// NewInMemory creates a concurrency-safe in-memory ledger used in development and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[string]decimal.Decimal),
		postings: make(map[string]PostingResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, p Posting) (PostingResult, error) {
	return l.apply(p, p.Amount)
}

func (l *inMemoryLedger) Debit(_ context.Context, p Posting) (PostingResult, error) {
	return l.apply(p, p.Amount.Neg())
}

func (l *inMemoryLedger) Posted(_ context.Context, kind, reference string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.postings[postingKey(kind, reference)]
	return exists, nil
}

func (l *inMemoryLedger) apply(p Posting, delta decimal.Decimal) (PostingResult, error) {
	if err := validatePosting(p); err != nil {
		return PostingResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := postingKey(p.Kind, p.Reference)
	if res, exists := l.postings[key]; exists {
		return res, ErrDuplicatePosting
	}

	balance, ok := l.balances[p.AccountCode]
	if !ok {
		return PostingResult{}, ErrAccountNotFound
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return PostingResult{}, ErrInsufficientFunds
	}
	l.balances[p.AccountCode] = next

	res := PostingResult{EntryID: uuid.NewString(), Balance: next, PostedAt: time.Now().UTC()}
	l.postings[key] = res
	return res, nil
}
