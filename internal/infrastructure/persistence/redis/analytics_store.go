// Package redis implements the persistent cache tier for Shulebook analytics.
package redis

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS STORE
// Persistent tier behind the in-process cache. Stores opaque JSON payloads
// keyed by the stable analytics key; the two-tier service owns serialization.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrPayloadEmpty is returned when storing an empty payload.
	ErrPayloadEmpty = errors.New("analytics_store: payload is empty")
)

// AnalyticsStore persists computed analytics payloads.
type AnalyticsStore struct {
	cache *Cache
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(cache *Cache) *AnalyticsStore {
	return &AnalyticsStore{cache: cache}
}

// GetPayload retrieves the raw payload for an analytics key.
// Returns ErrCacheMiss when the key is absent or expired.
func (s *AnalyticsStore) GetPayload(ctx context.Context, key string) ([]byte, error) {
	return s.cache.GetBytes(ctx, PrefixAnalytics+key)
}

// SetPayload stores the raw payload for an analytics key with a TTL.
func (s *AnalyticsStore) SetPayload(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	return s.cache.SetBytes(ctx, PrefixAnalytics+key, payload, ttl)
}

// Delete removes a single analytics key.
func (s *AnalyticsStore) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, PrefixAnalytics+key)
}

// DeleteByPrefix removes every analytics key that starts with the prefix.
// Used when marks change: all results scoped to the affected term go stale
// at once.
func (s *AnalyticsStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	return s.cache.DeleteByPattern(ctx, PrefixAnalytics+prefix+"*")
}

// AcquireWarmupLock takes the distributed warm-up lock so only one process
// recomputes analytics per scheduler tick. Returns false when another
// process holds it.
func (s *AnalyticsStore) AcquireWarmupLock(ctx context.Context, runID string) (bool, error) {
	return s.cache.SetNX(ctx, PrefixLock+"warmup", runID, TTLDistributedLock)
}
