package access

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// KeyEntry is a single verification key from the provider's key set
type KeyEntry struct {
	ID  string
	Key *rsa.PublicKey
}

// KeySet holds verification keys in the order the provider published them
type KeySet struct {
	entries   []KeyEntry
	byID      map[string]int
	FetchedAt time.Time
}

// NewKeySet builds a key set from entries, keeping the first entry for any repeated id
func NewKeySet(entries []KeyEntry) *KeySet {
	ks := &KeySet{
		entries: make([]KeyEntry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Key == nil {
			continue
		}
		if _, dup := ks.byID[e.ID]; dup {
			continue
		}
		ks.byID[e.ID] = len(ks.entries)
		ks.entries = append(ks.entries, e)
	}
	return ks
}

// Len returns the number of usable keys
func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.entries)
}

// Entries returns the keys in provider order
func (ks *KeySet) Entries() []KeyEntry {
	if ks == nil {
		return nil
	}
	return ks.entries
}

// Lookup returns the key registered under kid
func (ks *KeySet) Lookup(kid string) (KeyEntry, bool) {
	if ks == nil || kid == "" {
		return KeyEntry{}, false
	}
	i, ok := ks.byID[kid]
	if !ok {
		return KeyEntry{}, false
	}
	return ks.entries[i], true
}

// IDs returns the key identifiers in provider order
func (ks *KeySet) IDs() []string {
	ids := make([]string, 0, ks.Len())
	for _, e := range ks.Entries() {
		ids = append(ids, e.ID)
	}
	return ids
}

// certsDocument is the provider's key-set response. Only "keys" is consumed;
// public_cert(s) carry the same keys as PEM.
type certsDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// ParseKeySet converts the provider's JSON document into a KeySet.
// Individual malformed entries are logged and skipped; a document that yields
// no usable key is a KeySetEmpty failure.
func ParseKeySet(raw []byte, logger *zap.Logger) (*KeySet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc certsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newFailure(KindKeySetEmpty, "undecodable key set document", err)
	}

	entries := make([]KeyEntry, 0, len(doc.Keys))
	for i, rawKey := range doc.Keys {
		entry, err := parseKeyEntry(rawKey)
		if err != nil {
			logger.Warn("skipping key set entry",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}

	ks := NewKeySet(entries)
	if ks.Len() == 0 {
		return nil, newFailure(KindKeySetEmpty, fmt.Sprintf("none of %d entries usable", len(doc.Keys)), nil)
	}
	return ks, nil
}

func parseKeyEntry(raw json.RawMessage) (KeyEntry, error) {
	key, err := jwk.ParseKey(raw)
	if err != nil {
		return KeyEntry{}, fmt.Errorf("malformed JWK: %w", err)
	}

	if key.KeyType() != jwa.RSA {
		return KeyEntry{}, fmt.Errorf("unsupported key type: %s", key.KeyType())
	}
	if alg := key.Algorithm().String(); alg != "" && alg != jwa.RS256.String() {
		return KeyEntry{}, fmt.Errorf("unsupported key algorithm: %s", alg)
	}
	if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
		return KeyEntry{}, fmt.Errorf("unsupported key use: %s", use)
	}
	kid := key.KeyID()
	if kid == "" {
		return KeyEntry{}, fmt.Errorf("missing kid")
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return KeyEntry{}, fmt.Errorf("failed to derive public key: %w", err)
	}

	var rawKey interface{}
	if err := pub.Raw(&rawKey); err != nil {
		return KeyEntry{}, fmt.Errorf("failed to export RSA key: %w", err)
	}
	rsaKey, ok := rawKey.(*rsa.PublicKey)
	if !ok {
		return KeyEntry{}, fmt.Errorf("unexpected raw key type %T", rawKey)
	}

	return KeyEntry{ID: kid, Key: rsaKey}, nil
}
