package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/cfaccess/access"
	"github.com/upb/cfaccess/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for verified token claims
	ClaimsKey contextKey = "claims"

	// BindingKey is the context key for the identity binding
	BindingKey contextKey = "identity_binding"

	// AccountKey is the context key for the bound local account
	AccountKey contextKey = "account"
)

// GetRequestIDFromContext retrieves the request ID assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// GetClaimsFromContext retrieves verified claims from context
func GetClaimsFromContext(ctx context.Context) *access.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*access.Claims); ok {
		return claims
	}
	return nil
}

// WithClaims adds verified claims to the context
func WithClaims(ctx context.Context, claims *access.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetBindingFromContext retrieves the identity binding from context
func GetBindingFromContext(ctx context.Context) *access.IdentityBinding {
	if binding, ok := ctx.Value(BindingKey).(*access.IdentityBinding); ok {
		return binding
	}
	return nil
}

// WithBinding adds an identity binding to the context
func WithBinding(ctx context.Context, binding *access.IdentityBinding) context.Context {
	return context.WithValue(ctx, BindingKey, binding)
}

// GetAccountFromContext retrieves the bound account from context
func GetAccountFromContext(ctx context.Context) *models.Account {
	if account, ok := ctx.Value(AccountKey).(*models.Account); ok {
		return account
	}
	return nil
}

// WithAccount adds the bound account to the context
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// GetEmailFromContext returns the verified email, or ""
func GetEmailFromContext(ctx context.Context) string {
	if claims := GetClaimsFromContext(ctx); claims != nil {
		return claims.Email
	}
	return ""
}

// GetAccountIDFromContext returns the bound account id, or uuid.Nil
func GetAccountIDFromContext(ctx context.Context) uuid.UUID {
	if binding := GetBindingFromContext(ctx); binding != nil {
		return binding.AccountID
	}
	return uuid.Nil
}
