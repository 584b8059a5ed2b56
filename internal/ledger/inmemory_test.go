package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInMemoryLedger_CreditAndDebit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	if err := l.EnsureAccount(ctx, "wallet:a:USDT"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	res, err := l.Credit(ctx, Posting{AccountCode: "wallet:a:USDT", Kind: KindManualCredit, Reference: "r1", Amount: decimal.RequireFromString("12.5")})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !res.Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5 got %s", res.Balance)
	}

	res, err = l.Debit(ctx, Posting{AccountCode: "wallet:a:USDT", Kind: KindManualDebit, Reference: "r2", Amount: decimal.RequireFromString("2.5")})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !res.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10 got %s", res.Balance)
	}
}

func TestInMemoryLedger_DebitNeverGoesNegative(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a:USDT")
	SeedBalance(l, "wallet:a:USDT", decimal.NewFromInt(5))

	_, err := l.Debit(ctx, Posting{AccountCode: "wallet:a:USDT", Kind: KindOffRampDebit, Reference: "tx-1", Amount: decimal.NewFromInt(6)})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	bal, _ := l.Balance(ctx, "wallet:a:USDT")
	if !bal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance changed on rejected debit: %s", bal)
	}
}

func TestInMemoryLedger_DuplicatePosting(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a:USDT")

	p := Posting{AccountCode: "wallet:a:USDT", Kind: KindOnRampSettlement, Reference: "tx-1", Amount: decimal.NewFromInt(3)}
	first, err := l.Credit(ctx, p)
	if err != nil {
		t.Fatalf("initial credit: %v", err)
	}
	again, err := l.Credit(ctx, p)
	if !errors.Is(err, ErrDuplicatePosting) {
		t.Fatalf("expected duplicate posting, got %v", err)
	}
	if again.EntryID != first.EntryID {
		t.Fatalf("expected original entry to be returned")
	}
	bal, _ := l.Balance(ctx, "wallet:a:USDT")
	if !bal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("duplicate posting applied twice: %s", bal)
	}
	posted, _ := l.Posted(ctx, KindOnRampSettlement, "tx-1")
	if !posted {
		t.Fatal("expected posting to be recorded")
	}
}

func TestInMemoryLedger_RejectsInvalidPostings(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a:USDT")

	if _, err := l.Credit(ctx, Posting{AccountCode: "wallet:a:USDT", Kind: KindManualCredit, Reference: "neg", Amount: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.Credit(ctx, Posting{AccountCode: "missing", Kind: KindManualCredit, Reference: "x", Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentDebitsCannotOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a:USDT")
	SeedBalance(l, "wallet:a:USDT", decimal.NewFromInt(10))

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Debit(ctx, Posting{AccountCode: "wallet:a:USDT", Kind: KindOffRampDebit, Reference: fmt.Sprintf("tx-%d", i), Amount: decimal.NewFromInt(1)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("debit %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 debits to succeed, got %d", succeeded)
	}
	bal, _ := l.Balance(ctx, "wallet:a:USDT")
	if !bal.IsZero() {
		t.Fatalf("expected zero balance, got %s", bal)
	}
}
