package access

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves a raw key-set document
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string) ([]byte, error)
}

// KeySource supplies parsed key sets to the authenticator
type KeySource interface {
	// KeySet returns the current key set for the provider at baseURL
	KeySet(ctx context.Context, baseURL string) (*KeySet, error)

	// Refresh re-fetches the key set, subject to throttling
	Refresh(ctx context.Context, baseURL string) (*KeySet, error)
}

// CacheConfig holds the KeySetCache timings
type CacheConfig struct {
	TTL                time.Duration
	NegativeTTL        time.Duration
	MinRefreshInterval time.Duration
}

type keySetEntry struct {
	keys        *KeySet
	err         error
	expiresAt   time.Time
	lastAttempt time.Time
}

// KeySetCache is a shared, time-bounded key-set cache keyed by provider URL.
// Concurrent misses for one provider share a single fetch.
type KeySetCache struct {
	fetcher     Fetcher
	logger      *zap.Logger
	ttl         time.Duration
	negativeTTL time.Duration
	minRefresh  time.Duration

	mu      sync.RWMutex
	entries map[string]*keySetEntry
	group   singleflight.Group
	now     func() time.Time

	hits     atomic.Uint64
	misses   atomic.Uint64
	fetches  atomic.Uint64
	failures atomic.Uint64
}

// NewKeySetCache creates a cache in front of fetcher
func NewKeySetCache(fetcher Fetcher, config CacheConfig, logger *zap.Logger) *KeySetCache {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.NegativeTTL <= 0 {
		config.NegativeTTL = 30 * time.Second
	}
	if config.MinRefreshInterval <= 0 {
		config.MinRefreshInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KeySetCache{
		fetcher:     fetcher,
		logger:      logger,
		ttl:         config.TTL,
		negativeTTL: config.NegativeTTL,
		minRefresh:  config.MinRefreshInterval,
		entries:     make(map[string]*keySetEntry),
		now:         time.Now,
	}
}

// KeySet returns the cached key set, loading it on miss or expiry.
// A cached failure is returned as-is until the negative TTL lapses.
func (c *KeySetCache) KeySet(ctx context.Context, baseURL string) (*KeySet, error) {
	endpoint := normalizeEndpoint(baseURL)
	if endpoint == "" {
		return nil, newFailure(KindConfigurationMissing, "provider URL is not configured", nil)
	}

	if e, ok := c.entry(endpoint); ok && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.keys, e.err
	}

	c.misses.Add(1)
	return c.load(ctx, endpoint)
}

// Refresh bypasses the positive TTL, at most once per minimum refresh interval
func (c *KeySetCache) Refresh(ctx context.Context, baseURL string) (*KeySet, error) {
	endpoint := normalizeEndpoint(baseURL)
	if endpoint == "" {
		return nil, newFailure(KindConfigurationMissing, "provider URL is not configured", nil)
	}

	if e, ok := c.entry(endpoint); ok && c.now().Sub(e.lastAttempt) < c.minRefresh {
		c.logger.Debug("key set refresh throttled", zap.String("endpoint", endpoint))
		return e.keys, e.err
	}

	return c.load(ctx, endpoint)
}

// Invalidate drops the cached entry for baseURL
func (c *KeySetCache) Invalidate(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeEndpoint(baseURL))
}

// InvalidateAll drops every cached entry
func (c *KeySetCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*keySetEntry)
}

// Stats returns cache statistics
func (c *KeySetCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cachedKeys := 0
	healthy := 0
	for _, e := range c.entries {
		if e.keys != nil {
			healthy++
			cachedKeys += e.keys.Len()
		}
	}

	return map[string]interface{}{
		"endpoints":         len(c.entries),
		"healthy_endpoints": healthy,
		"cached_keys_count": cachedKeys,
		"hits":              c.hits.Load(),
		"misses":            c.misses.Load(),
		"fetches":           c.fetches.Load(),
		"failures":          c.failures.Load(),
	}
}

// entry returns a snapshot of the cached entry for endpoint
func (c *KeySetCache) entry(endpoint string) (keySetEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[endpoint]
	if !ok {
		return keySetEntry{}, false
	}
	return *e, true
}

func (c *KeySetCache) load(ctx context.Context, endpoint string) (*KeySet, error) {
	v, err, shared := c.group.Do(endpoint, func() (interface{}, error) {
		c.fetches.Add(1)

		// The fetch outlives any single waiter; the HTTP client timeout bounds it.
		raw, err := c.fetcher.Fetch(context.WithoutCancel(ctx), endpoint)
		var keys *KeySet
		if err == nil {
			keys, err = ParseKeySet(raw, c.logger)
		}
		if keys != nil {
			keys.FetchedAt = c.now()
		}
		return c.store(endpoint, keys, err)
	})
	if shared {
		c.logger.Debug("key set fetch coalesced", zap.String("endpoint", endpoint))
	}

	keys, _ := v.(*KeySet)
	return keys, err
}

// store records the outcome of a fetch. A failed refresh does not evict a
// still-valid key set; it only moves the refresh throttle forward.
func (c *KeySetCache) store(endpoint string, keys *KeySet, err error) (*KeySet, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("key set fetch failed",
			zap.String("endpoint", endpoint),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))

		if prev, ok := c.entries[endpoint]; ok && prev.keys != nil && now.Before(prev.expiresAt) {
			c.entries[endpoint] = &keySetEntry{
				keys:        prev.keys,
				expiresAt:   prev.expiresAt,
				lastAttempt: now,
			}
			return prev.keys, nil
		}
		c.entries[endpoint] = &keySetEntry{
			err:         err,
			expiresAt:   now.Add(c.negativeTTL),
			lastAttempt: now,
		}
		return nil, err
	}

	c.entries[endpoint] = &keySetEntry{
		keys:        keys,
		expiresAt:   now.Add(c.ttl),
		lastAttempt: now,
	}
	c.logger.Debug("key set cached",
		zap.String("endpoint", endpoint),
		zap.Strings("kids", keys.IDs()))
	return keys, nil
}

func normalizeEndpoint(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
