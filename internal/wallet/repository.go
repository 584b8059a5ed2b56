package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrWalletNotFound is returned when the user has no wallet in the currency.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletExists is returned when the user already holds the currency.
	ErrWalletExists = errors.New("wallet exists")
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, userID, currency string) (Wallet, error)
	ListByUser(ctx context.Context, userID string) ([]Wallet, error)
	SetAddress(ctx context.Context, userID, currency, address string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, user_id, currency, account_code, COALESCE(wallet_address, ''), created_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(wallet.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, currency, account_code, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, userID, wallet.Currency, wallet.AccountCode, wallet.CreatedAt.UTC())
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrWalletExists
	}
	return err
}

// Get fetches the user's wallet in the currency.
func (r *PostgresRepository) Get(ctx context.Context, userID, currency string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	return scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE user_id = $1 AND currency = $2`, uid, strings.ToUpper(currency)))
}

// ListByUser returns every wallet of the user ordered by currency.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY currency`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// SetAddress stores the external address of a wallet.
func (r *PostgresRepository) SetAddress(ctx context.Context, userID, currency, address string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	return scanWallet(r.db.QueryRow(ctx, `UPDATE wallets SET wallet_address = $3
        WHERE user_id = $1 AND currency = $2 RETURNING `+walletColumns, uid, strings.ToUpper(currency), address))
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		userID    uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &w.Currency, &w.AccountCode, &w.WalletAddress, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = userID.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
