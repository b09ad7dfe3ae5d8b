package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/cfaccess/models"
	"github.com/upb/cfaccess/repositories"
	"go.uber.org/zap"
)

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// GetIDByUsername returns the id of the account whose username equals username
func (r *AccountRepository) GetIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	query := `SELECT id FROM users WHERE username = $1`

	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, repositories.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up account by username: %w", err)
	}

	return id, nil
}

// GetIDByProfileEmail returns the id of the account whose profile email equals email
func (r *AccountRepository) GetIDByProfileEmail(ctx context.Context, email string) (uuid.UUID, error) {
	query := `SELECT user_id FROM user_profiles WHERE email = $1 ORDER BY user_id LIMIT 1`

	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, repositories.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up account by profile email: %w", err)
	}

	return id, nil
}

// GetByID retrieves an account with its profile, if any
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `
		SELECT u.id, u.username, u.active, u.created_at, u.updated_at,
		       p.email, p.full_name
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`

	account := &models.Account{}
	var email, fullName sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Username,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
		&email,
		&fullName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if email.Valid {
		account.Profile = &models.Profile{
			UserID:   account.ID,
			Email:    email.String,
			FullName: fullName.String,
		}
	}

	r.logger.Debug("account loaded", zap.String("id", account.ID.String()))
	return account, nil
}
