package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the phone or email is already registered.
	ErrUserExists = errors.New("user exists")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByContact(ctx context.Context, phone, email string) (User, error)
	List(ctx context.Context, filter ListFilter) ([]User, error)
	UpdateKYC(ctx context.Context, id, status, notes string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, COALESCE(phone, ''), COALESCE(email, ''), first_name, last_name, country,
        kyc_status, COALESCE(kyc_notes, ''), role, created_at, updated_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, phone, email, first_name, last_name, country, kyc_status, role, created_at, updated_at)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $9)`,
		userID, user.Phone, user.Email, user.FirstName, user.LastName, user.Country, user.KYCStatus, user.Role, user.CreatedAt.UTC())
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrUserExists
	}
	return err
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByContact fetches the user registered with either the phone or the email.
func (r *PostgresRepository) FindByContact(ctx context.Context, phone, email string) (User, error) {
	if phone == "" && email == "" {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
        WHERE ($1 <> '' AND phone = $1) OR ($2 <> '' AND email = $2)
        ORDER BY created_at LIMIT 1`, phone, email))
}

// List returns users newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []any{}
	if filter.Country != "" {
		args = append(args, filter.Country)
		query += fmt.Sprintf(" AND country = $%d", len(args))
	}
	if filter.KYCStatus != "" {
		args = append(args, filter.KYCStatus)
		query += fmt.Sprintf(" AND kyc_status = $%d", len(args))
	}
	if filter.ExcludeAdmin {
		args = append(args, RoleAdmin)
		query += fmt.Sprintf(" AND role <> $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateKYC sets the KYC status of a user and returns the updated record.
func (r *PostgresRepository) UpdateKYC(ctx context.Context, id, status, notes string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `UPDATE users SET kyc_status = $2, kyc_notes = NULLIF($3, ''), updated_at = now()
        WHERE id = $1 RETURNING `+userColumns, userID, status, notes))
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id      uuid.UUID
		user    User
		created time.Time
		updated time.Time
	)
	err := row.Scan(&id, &user.Phone, &user.Email, &user.FirstName, &user.LastName, &user.Country,
		&user.KYCStatus, &user.KYCNotes, &user.Role, &created, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = created.UTC()
	user.UpdatedAt = updated.UTC()
	return user, nil
}
