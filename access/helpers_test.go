package access

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "4714c1358e65fe4b408ad6d432a5f878f08194bdb4752441fd56faefa9b2b6f2"
	testEmail    = "user@example.com"
)

// testKey is a signing key together with the kid it is published under
type testKey struct {
	kid     string
	private *rsa.PrivateKey
}

func newTestKey(t *testing.T, kid string) testKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return testKey{kid: kid, private: privateKey}
}

func (k testKey) jwk() map[string]string {
	pub := k.private.PublicKey
	return map[string]string{
		"kid": k.kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// certsJSON renders a provider key-set document for keys
func certsJSON(t *testing.T, keys ...testKey) []byte {
	t.Helper()
	entries := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, k.jwk())
	}
	body, err := json.Marshal(map[string]interface{}{"keys": entries})
	require.NoError(t, err)
	return body
}

// certsServer serves a mutable key-set document and counts requests
type certsServer struct {
	*httptest.Server
	body     atomic.Value
	status   atomic.Int32
	requests atomic.Int32
}

func newCertsServer(t *testing.T, keys ...testKey) *certsServer {
	t.Helper()
	s := &certsServer{}
	s.body.Store(certsJSON(t, keys...))
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if r.URL.Path != CertsPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write(s.body.Load().([]byte))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *certsServer) publish(t *testing.T, keys ...testKey) {
	s.body.Store(certsJSON(t, keys...))
}

// signToken issues a token signed by key with the given audiences
func signToken(t *testing.T, key testKey, audience []string, mutate ...func(*Claims)) string {
	t.Helper()
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://example.cloudflareaccess.com",
			Subject:   "6f2d6c4e-6a55-4b70-9a8f-7c2f0b0a9f31",
			Audience:  jwt.ClaimStrings(audience),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Email:         testEmail,
		Type:          "app",
		IdentityNonce: "nonce",
		Country:       "US",
	}
	for _, m := range mutate {
		m(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if key.kid != "" {
		token.Header["kid"] = key.kid
	}
	signed, err := token.SignedString(key.private)
	require.NoError(t, err)
	return signed
}

func keySetOf(keys ...testKey) *KeySet {
	entries := make([]KeyEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, KeyEntry{ID: k.kid, Key: &k.private.PublicKey})
	}
	return NewKeySet(entries)
}
