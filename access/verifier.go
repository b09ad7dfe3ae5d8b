package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenVerifier checks a token's signature and audience against a key set
type TokenVerifier interface {
	Verify(token string, keys *KeySet, audience string) (*Claims, error)
}

// Verifier verifies RS256 tokens issued by the edge identity provider
type Verifier struct {
	leeway time.Duration
	logger *zap.Logger
}

// NewVerifier creates a Verifier. leeway is applied to exp/nbf/iat checks.
func NewVerifier(leeway time.Duration, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		leeway: leeway,
		logger: logger,
	}
}

// Verify returns the claims of token once a key from keys verifies its
// signature and the token's audience contains audience. If the token header
// names a kid present in keys only that key is tried; otherwise every key is
// tried in key-set order.
func (v *Verifier) Verify(token string, keys *KeySet, audience string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if keys.Len() == 0 {
		return nil, ErrKeySetEmpty
	}
	if audience == "" {
		return nil, newFailure(KindConfigurationMissing, "audience is not configured", nil)
	}

	header, err := parseHeader(token)
	if err != nil {
		return nil, newFailure(KindInvalidToken, "malformed token", err)
	}
	if header.alg != jwt.SigningMethodRS256.Alg() {
		return nil, newFailure(KindInvalidToken, fmt.Sprintf("unexpected signing method: %s", header.alg), nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)

	var lastErr error
	for _, candidate := range candidates(keys, header.kid) {
		claims := &Claims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return candidate.Key, nil
		})
		if err == nil && parsed.Valid {
			return claims, nil
		}

		lastErr = err
		v.logger.Debug("candidate key rejected token",
			zap.String("kid", candidate.ID),
			zap.Error(err))

		// Claim failures do not depend on the key; no other candidate can succeed.
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) || errors.Is(err, jwt.ErrTokenUsedBeforeIssued) {
			break
		}
	}

	return nil, newFailure(KindInvalidToken, "no key verified the token", lastErr)
}

type tokenHeader struct {
	alg string
	kid string
}

func parseHeader(token string) (tokenHeader, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return tokenHeader{}, err
	}
	alg, _ := unverified.Header["alg"].(string)
	kid, _ := unverified.Header["kid"].(string)
	return tokenHeader{alg: alg, kid: kid}, nil
}

func candidates(keys *KeySet, kid string) []KeyEntry {
	if entry, ok := keys.Lookup(kid); ok {
		return []KeyEntry{entry}
	}
	return keys.Entries()
}
