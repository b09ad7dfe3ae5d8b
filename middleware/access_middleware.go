package middleware

import (
	"context"
	"net/http"

	"github.com/upb/cfaccess/access"
	"github.com/upb/cfaccess/repositories"
	"github.com/upb/cfaccess/utils"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the edge access token
const CookieName = "CF_Authorization"

// TokenValidator runs the authentication pipeline for a token
type TokenValidator interface {
	Validate(ctx context.Context, token string, settings access.Settings) access.Result
}

// AccessMiddleware gates requests on a valid edge access token
type AccessMiddleware struct {
	validator TokenValidator
	settings  access.Settings
	accounts  repositories.AccountRepository
	logger    *zap.Logger
}

// NewAccessMiddleware creates a new AccessMiddleware. accounts is optional;
// when set, bound accounts are loaded into the request context.
func NewAccessMiddleware(validator TokenValidator, settings access.Settings, accounts repositories.AccountRepository, logger *zap.Logger) *AccessMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessMiddleware{
		validator: validator,
		settings:  settings,
		accounts:  accounts,
		logger:    logger,
	}
}

// Protect authenticates requests served under contextKey when that context
// is configured for checking. Other contexts pass through untouched.
func (m *AccessMiddleware) Protect(contextKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !access.ShouldAuthenticate(contextKey, m.settings.Contexts) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, ok := m.authenticate(r)
			if !ok {
				m.deny(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require authenticates every request regardless of context. On failure the
// fallback handler is served when given, otherwise the request is denied.
func (m *AccessMiddleware) Require(fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := m.authenticate(r)
			if ok {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if fallback != nil {
				fallback.ServeHTTP(w, r)
				return
			}
			m.deny(w)
		})
	}
}

func (m *AccessMiddleware) authenticate(r *http.Request) (context.Context, bool) {
	ctx := r.Context()

	result := m.validator.Validate(ctx, extractToken(r), m.settings)
	if !result.OK {
		return ctx, false
	}

	ctx = WithClaims(ctx, result.Claims)
	if result.Binding != nil {
		ctx = WithBinding(ctx, result.Binding)
		ctx = m.attachAccount(ctx, result.Binding)
	}

	m.logger.Debug("request authenticated",
		zap.String("request_id", GetRequestIDFromContext(ctx)),
		zap.String("email", result.Email()))
	return ctx, true
}

// attachAccount loads the bound account. A failed load leaves the request
// authenticated without an account.
func (m *AccessMiddleware) attachAccount(ctx context.Context, binding *access.IdentityBinding) context.Context {
	if m.accounts == nil {
		return ctx
	}

	account, err := m.accounts.GetByID(ctx, binding.AccountID)
	if err != nil {
		m.logger.Warn("failed to load bound account",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("account_id", binding.AccountID.String()),
			zap.Error(err))
		return ctx
	}
	return WithAccount(ctx, account)
}

func (m *AccessMiddleware) deny(w http.ResponseWriter) {
	_ = utils.WriteDenied(w, m.settings.Obfuscate)
}

// extractToken reads the access token cookie
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
