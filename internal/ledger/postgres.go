package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger keeps account balances and their posting journal in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO ledger_accounts (code) VALUES ($1)
        ON CONFLICT (code) DO NOTHING`, code)
	return err
}

// Balance returns the current balance of the account.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRow(ctx, `SELECT balance::text FROM ledger_accounts WHERE code = $1`, code).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// Credit adds the posting amount to the account.
func (l *PostgresLedger) Credit(ctx context.Context, p Posting) (PostingResult, error) {
	return l.apply(ctx, p, p.Amount)
}

// Debit subtracts the posting amount only when the balance covers it. The
// check and the mutation are one UPDATE statement, so concurrent debits cannot
// both pass a stale balance check.
func (l *PostgresLedger) Debit(ctx context.Context, p Posting) (PostingResult, error) {
	return l.apply(ctx, p, p.Amount.Neg())
}

// Posted reports whether a posting with the given idempotency key exists.
func (l *PostgresLedger) Posted(ctx context.Context, kind, reference string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE kind = $1 AND reference = $2)`,
		kind, reference).Scan(&exists)
	return exists, err
}

func (l *PostgresLedger) apply(ctx context.Context, p Posting, delta decimal.Decimal) (PostingResult, error) {
	if err := validatePosting(p); err != nil {
		return PostingResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if existing, found, err := existingPosting(ctx, tx, p.Kind, p.Reference); err != nil {
		return PostingResult{}, err
	} else if found {
		return existing, ErrDuplicatePosting
	}

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `UPDATE ledger_accounts
        SET balance = balance + $2::numeric, updated_at = now()
        WHERE code = $1 AND balance + $2::numeric >= 0
        RETURNING balance::text`, p.AccountCode, delta.String()).Scan(&balance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return PostingResult{}, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_accounts WHERE code = $1)`, p.AccountCode).Scan(&exists); err != nil {
			return PostingResult{}, err
		}
		if !exists {
			return PostingResult{}, ErrAccountNotFound
		}
		return PostingResult{}, ErrInsufficientFunds
	}

	entryID := uuid.New()
	postedAt := time.Now().UTC()
	tag, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, account_code, kind, reference, amount, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
        ON CONFLICT (kind, reference) DO NOTHING`,
		entryID, p.AccountCode, p.Kind, p.Reference, delta.String(), balance.String(), postedAt)
	if err != nil {
		return PostingResult{}, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent writer won the race for this idempotency key; our balance
		// update rolls back with the transaction.
		_ = tx.Rollback(ctx)
		existing, found, err := existingPosting(ctx, l.db, p.Kind, p.Reference)
		if err != nil {
			return PostingResult{}, err
		}
		if !found {
			return PostingResult{}, fmt.Errorf("posting %s vanished after conflict", postingKey(p.Kind, p.Reference))
		}
		return existing, ErrDuplicatePosting
	}

	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}
	return PostingResult{EntryID: entryID.String(), Balance: balance, PostedAt: postedAt}, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func existingPosting(ctx context.Context, q queryRower, kind, reference string) (PostingResult, bool, error) {
	var (
		id       uuid.UUID
		balance  decimal.Decimal
		postedAt time.Time
	)
	err := q.QueryRow(ctx, `SELECT id, balance_after::text, created_at FROM ledger_entries
        WHERE kind = $1 AND reference = $2`, kind, reference).Scan(&id, &balance, &postedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingResult{}, false, nil
		}
		return PostingResult{}, false, err
	}
	return PostingResult{EntryID: id.String(), Balance: balance, PostedAt: postedAt.UTC()}, true, nil
}
