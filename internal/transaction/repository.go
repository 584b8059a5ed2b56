package transaction

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

var (
	// ErrNotFound is returned when no transaction matches.
	ErrNotFound = errors.New("transaction not found")
	// ErrStatusConflict is returned when a conditional status write finds the
	// transaction in a different status than expected.
	ErrStatusConflict = errors.New("transaction status changed concurrently")
)

// Repository persists transactions.
type Repository interface {
	Create(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter Filter) ([]Transaction, error)
	// UpdateStatus moves the transaction from one status to another only if it
	// is still in from, applying the patch in the same write.
	UpdateStatus(ctx context.Context, id, from, to string, patch Patch) (Transaction, error)
	// ListStale returns non-terminal transactions last updated before the cutoff.
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Transaction, error)
	// Touch bumps updated_at so a requeued transaction is not swept again immediately.
	Touch(ctx context.Context, id string) error
}

// PostgresRepository stores transactions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed transaction repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = `id, user_id, type, status, from_currency, to_currency,
        from_amount::text, to_amount::text, exchange_rate::text, fees::text,
        payment_method, COALESCE(recipient_phone, ''), COALESCE(mobile_money_reference, ''),
        COALESCE(crypto_tx_hash, ''), COALESCE(admin_notes, ''), created_at, updated_at`

// Create inserts a transaction.
func (r *PostgresRepository) Create(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(tx.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (id, user_id, type, status, from_currency, to_currency,
        from_amount, to_amount, exchange_rate, fees, payment_method, recipient_phone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, NULLIF($12, ''), $13, $13)`,
		id, userID, tx.Type, tx.Status, tx.FromCurrency, tx.ToCurrency,
		tx.FromAmount.String(), tx.ToAmount.String(), tx.ExchangeRate.String(), tx.Fees.String(),
		tx.PaymentMethod, tx.RecipientPhone, tx.CreatedAt.UTC())
	return err
}

// Get fetches one transaction.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	return scanTransaction(r.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, txID))
}

// List returns transactions newest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if filter.UserID != "" {
		userID, err := uuid.Parse(filter.UserID)
		if err != nil {
			return nil, nil
		}
		args = append(args, userID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return r.query(ctx, query, args...)
}

// UpdateStatus performs the conditional status write.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, from, to string, patch Patch) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	tx, err := scanTransaction(r.db.QueryRow(ctx, `UPDATE transactions SET
            status = $3,
            mobile_money_reference = COALESCE($4, mobile_money_reference),
            crypto_tx_hash = COALESCE($5, crypto_tx_hash),
            admin_notes = COALESCE($6, admin_notes),
            updated_at = now()
        WHERE id = $1 AND status = $2
        RETURNING `+txColumns, txID, from, to, patch.MobileMoneyReference, patch.CryptoTxHash, patch.AdminNotes))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Transaction{}, getErr
		}
		return Transaction{}, ErrStatusConflict
	}
	return tx, err
}

// ListStale returns stuck pending or processing transactions, oldest first.
func (r *PostgresRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE status IN ('pending', 'processing') AND updated_at < $1
        ORDER BY updated_at LIMIT $2`, updatedBefore.UTC(), limit)
}

// Touch bumps updated_at.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	txID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE transactions SET updated_at = now() WHERE id = $1`, txID)
	return err
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx                              Transaction
		id, userID                      uuid.UUID
		fromAmount, toAmount, rate, fee decimal.Decimal
		createdAt, updatedAt            time.Time
	)
	err := row.Scan(&id, &userID, &tx.Type, &tx.Status, &tx.FromCurrency, &tx.ToCurrency,
		&fromAmount, &toAmount, &rate, &fee,
		&tx.PaymentMethod, &tx.RecipientPhone, &tx.MobileMoneyReference,
		&tx.CryptoTxHash, &tx.AdminNotes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.UserID = userID.String()
	tx.FromAmount, tx.ToAmount, tx.ExchangeRate, tx.Fees = fromAmount, toAmount, rate, fee
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}
