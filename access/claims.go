package access

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the payload of an edge access token
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	Type          string `json:"type,omitempty"`
	IdentityNonce string `json:"identity_nonce,omitempty"`
	Country       string `json:"country,omitempty"`
}

// HasAudience reports whether aud is one of the token's audiences
func (c *Claims) HasAudience(aud string) bool {
	if c == nil || aud == "" {
		return false
	}
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}

// IdentityBinding associates a verified email with a local account
type IdentityBinding struct {
	AccountID uuid.UUID
	Email     string
}

// Result is the outcome of Authenticator.Validate
type Result struct {
	OK      bool
	Claims  *Claims
	Binding *IdentityBinding
}

// Email returns the verified email, or "" when validation failed
func (r Result) Email() string {
	if !r.OK || r.Claims == nil {
		return ""
	}
	return r.Claims.Email
}

// AccountID returns the bound account, or uuid.Nil
func (r Result) AccountID() uuid.UUID {
	if !r.OK || r.Binding == nil {
		return uuid.Nil
	}
	return r.Binding.AccountID
}
