package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/cfaccess/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// AccountRepository handles local account lookups
type AccountRepository interface {
	// GetIDByUsername returns the id of the account whose username equals username
	GetIDByUsername(ctx context.Context, username string) (uuid.UUID, error)

	// GetIDByProfileEmail returns the id of the account whose profile email equals email
	GetIDByProfileEmail(ctx context.Context, email string) (uuid.UUID, error)

	// GetByID retrieves an account with its profile
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts AccountRepository
}
