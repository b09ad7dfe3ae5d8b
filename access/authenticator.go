package access

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings is the immutable per-request configuration of the pipeline
type Settings struct {
	ProviderURL    string
	Audience       string
	RequireAccount bool
	AssignAccount  bool
	Contexts       []string
	Obfuscate      bool
}

// Authenticator composes key retrieval, verification and identity resolution
// into a single fail-closed decision.
type Authenticator struct {
	keys     KeySource
	verifier TokenVerifier
	resolver IdentityResolver
	logger   *zap.Logger
}

// NewAuthenticator wires the pipeline stages. resolver may be nil when no
// account store is available; RequireAccount then always fails.
func NewAuthenticator(keys KeySource, verifier TokenVerifier, resolver IdentityResolver, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		keys:     keys,
		verifier: verifier,
		resolver: resolver,
		logger:   logger,
	}
}

// Validate runs the pipeline for token under settings. It never returns an
// error: every failure is logged and reported as Result{OK: false}.
func (a *Authenticator) Validate(ctx context.Context, token string, settings Settings) Result {
	claims, accountID, err := a.validate(ctx, token, settings)
	if err != nil {
		a.logger.Info("authentication failed",
			zap.String("request_id", middleware.GetReqID(ctx)),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return Result{}
	}

	result := Result{OK: true, Claims: claims}
	if settings.AssignAccount && accountID != uuid.Nil {
		result.Binding = &IdentityBinding{AccountID: accountID, Email: claims.Email}
	}

	a.logger.Debug("authentication succeeded",
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("email", claims.Email),
		zap.Bool("bound", result.Binding != nil))
	return result
}

func (a *Authenticator) validate(ctx context.Context, token string, settings Settings) (*Claims, uuid.UUID, error) {
	keys, err := a.keys.KeySet(ctx, settings.ProviderURL)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if keys.Len() == 0 {
		return nil, uuid.Nil, ErrKeySetEmpty
	}

	if settings.Audience == "" {
		return nil, uuid.Nil, newFailure(KindConfigurationMissing, "audience is not configured", nil)
	}

	if token == "" {
		return nil, uuid.Nil, ErrNoToken
	}

	claims, err := a.verifier.Verify(token, keys, settings.Audience)
	if errors.Is(err, ErrInvalidToken) {
		claims, err = a.retryAfterRefresh(ctx, token, keys, settings)
	}
	if err != nil {
		return nil, uuid.Nil, err
	}

	if !settings.RequireAccount {
		return claims, uuid.Nil, nil
	}
	if a.resolver == nil {
		return nil, uuid.Nil, newFailure(KindAccountNotFound, "no account store configured", nil)
	}
	accountID, err := a.resolver.Resolve(ctx, claims.Email)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return claims, accountID, nil
}

// retryAfterRefresh tolerates key rotation: the token may be signed by a key
// published after the cached set was fetched.
func (a *Authenticator) retryAfterRefresh(ctx context.Context, token string, stale *KeySet, settings Settings) (*Claims, error) {
	fresh, err := a.keys.Refresh(ctx, settings.ProviderURL)
	if err != nil || fresh == nil || fresh == stale || fresh.Len() == 0 {
		return nil, newFailure(KindInvalidToken, "token rejected by current key set", err)
	}

	a.logger.Debug("retrying verification with refreshed key set",
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.Strings("kids", fresh.IDs()))
	return a.verifier.Verify(token, fresh, settings.Audience)
}
