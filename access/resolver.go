package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/cfaccess/repositories"
	"github.com/upb/cfaccess/utils"
	"go.uber.org/zap"
)

// IdentityResolver maps a verified email to a local account id
type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (uuid.UUID, error)
}

// Resolver performs the two-stage account lookup: account username first,
// then profile email.
type Resolver struct {
	accounts repositories.AccountRepository
	logger   *zap.Logger
}

// NewResolver creates a Resolver backed by accounts
func NewResolver(accounts repositories.AccountRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		accounts: accounts,
		logger:   logger,
	}
}

// Resolve returns the id of the account matching email exactly
func (r *Resolver) Resolve(ctx context.Context, email string) (uuid.UUID, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return uuid.Nil, newFailure(KindAccountNotFound, "claim is not a valid email", err)
	}

	id, err := r.accounts.GetIDByUsername(ctx, email)
	if err == nil {
		r.logger.Debug("account resolved by username", zap.String("account_id", id.String()))
		return id, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return uuid.Nil, newFailure(KindAccountNotFound, "username lookup failed", err)
	}

	id, err = r.accounts.GetIDByProfileEmail(ctx, email)
	if err == nil {
		r.logger.Debug("account resolved by profile email", zap.String("account_id", id.String()))
		return id, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return uuid.Nil, newFailure(KindAccountNotFound, "profile lookup failed", err)
	}

	return uuid.Nil, ErrAccountNotFound
}
