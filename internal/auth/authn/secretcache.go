package authn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/dgraph-io/ristretto/v2"
)

// SecretChecker answers validate_client_secret(bundle_id, secret).
type SecretChecker interface {
	ValidateClientSecret(ctx context.Context, bundleID, secret string) (bool, error)
}

// StoreSecretChecker compares a presented secret with the argon2 hash of the
// client application behind a channel.
type StoreSecretChecker struct {
	Channels store.Channels
	Pepper   string
}

func (c *StoreSecretChecker) ValidateClientSecret(ctx context.Context, bundleID, secret string) (bool, error) {
	hash, err := c.Channels.GetSecretHashForBundle(ctx, bundleID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("authn: secret lookup: %w", err)
	}

	switch err := cryptox.VerifySecret(secret, c.Pepper, hash); {
	case err == nil:
		return true, nil
	case errors.Is(err, cryptox.ErrSecretMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("authn: verify secret: %w", err)
	}
}

// SecretCacheConfig bounds the memo.
type SecretCacheConfig struct {
	MaxEntries int64
	TTL        time.Duration
}

const (
	DefaultSecretCacheEntries = 10_000
	DefaultSecretCacheTTL     = 5 * time.Minute
)

// SecretCache memoises SecretChecker results, both positive and negative,
// keyed by a fingerprint of (bundle_id, secret). Lookup errors are never
// cached.
type SecretCache struct {
	next  SecretChecker
	cache *ristretto.Cache[string, bool]
	ttl   time.Duration

	mu   sync.Mutex
	gens map[string]uint64
}

var _ SecretChecker = (*SecretCache)(nil)

func NewSecretCache(next SecretChecker, cfg SecretCacheConfig) (*SecretCache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultSecretCacheEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSecretCacheTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		Metrics:     true,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("authn: secret cache: %w", err)
	}

	return &SecretCache{next: next, cache: cache, ttl: cfg.TTL, gens: make(map[string]uint64)}, nil
}

func (c *SecretCache) key(bundleID, secret string) string {
	c.mu.Lock()
	gen := c.gens[bundleID]
	c.mu.Unlock()
	return cryptox.Fingerprint(bundleID, strconv.FormatUint(gen, 10), secret)
}

func (c *SecretCache) ValidateClientSecret(ctx context.Context, bundleID, secret string) (bool, error) {
	k := c.key(bundleID, secret)
	if ok, found := c.cache.Get(k); found {
		return ok, nil
	}

	ok, err := c.next.ValidateClientSecret(ctx, bundleID, secret)
	if err != nil {
		return false, err
	}
	c.cache.SetWithTTL(k, ok, 1, c.ttl)
	return ok, nil
}

// Invalidate drops every memoised result for bundleID. It only reaches this
// process; changes made by authctl are picked up once the TTL lapses.
func (c *SecretCache) Invalidate(bundleID string) {
	c.mu.Lock()
	c.gens[bundleID]++
	c.mu.Unlock()
}

// Wait blocks until buffered writes are applied.
func (c *SecretCache) Wait() { c.cache.Wait() }

// SecretCacheStats is a point-in-time view of the memo.
type SecretCacheStats struct {
	Hits    uint64
	Misses  uint64
	Evicted uint64
	Ratio   float64
}

func (c *SecretCache) Stats() SecretCacheStats {
	m := c.cache.Metrics
	return SecretCacheStats{
		Hits:    m.Hits(),
		Misses:  m.Misses(),
		Evicted: m.KeysEvicted(),
		Ratio:   m.Ratio(),
	}
}

func (c *SecretCache) Close() { c.cache.Close() }
