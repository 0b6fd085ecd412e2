// Package cache implements the two-tier caching layer for analytics results.
// The first tier is an in-process map guarded by a mutex; the second tier
// is a persistent store (Redis in production) that survives restarts.
// Reads check the in-process tier first, then the persistent tier, then
// compute. Writes go through to both tiers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMiss is returned when a key is absent from both tiers.
	ErrMiss = errors.New("cache: miss")

	// ErrNilCompute is returned when GetOrCompute receives a nil compute func.
	ErrNilCompute = errors.New("cache: compute function is nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENT TIER
// ══════════════════════════════════════════════════════════════════════════════

// Store is the persistent second tier. Implemented by redis.AnalyticsStore.
// A Store reports absence with an error that the service treats as a miss;
// any Get error other than ctx cancellation is treated as a miss too, so a
// degraded persistent tier slows reads down but never fails them.
type Store interface {
	GetPayload(ctx context.Context, key string) ([]byte, error)
	SetPayload(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// TWO-TIER SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// entry is an immutable in-process cache entry. The payload is the
// serialized form; callers always get their own deserialized copy, so
// mutating a returned value never corrupts the cached one.
type entry struct {
	payload   []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Service is the two-tier cache.
type Service struct {
	store Store
	log   *logger.Logger

	mu      sync.RWMutex
	entries map[string]entry

	// inflight serializes compute calls per key so concurrent readers
	// of a cold key trigger a single computation.
	inflight sync.Map // key -> *sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates a two-tier cache over the given persistent store.
// A nil store degrades to in-process caching only.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		log:     log.With(logger.String("component", "cache_service")),
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get retrieves a cached value into dest.
// Returns ErrMiss when the key is absent or expired in both tiers.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) error {
	if payload, ok := s.localGet(key); ok {
		return json.Unmarshal(payload, dest)
	}
	if s.store == nil {
		return ErrMiss
	}

	payload, err := s.store.GetPayload(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrMiss
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		// Corrupt payload counts as a miss; evict so the next read
		// recomputes instead of failing again.
		s.log.Warn("corrupt cache payload evicted",
			logger.CacheKey(key), logger.Err(err))
		_ = s.store.Delete(ctx, key)
		return ErrMiss
	}

	// Read repair: warm the in-process tier from the persistent one.
	// The local copy expires on its own schedule; the persistent TTL
	// still bounds overall staleness.
	s.localSet(key, payload, defaultLocalTTL)
	return nil
}

// defaultLocalTTL bounds how long a read-repaired entry lives in process
// when the original TTL is unknown.
const defaultLocalTTL = 5 * time.Minute

// Set stores a value in both tiers with the given TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.localSet(key, payload, ttl)

	if s.store != nil {
		if err := s.store.SetPayload(ctx, key, payload, ttl); err != nil {
			// The in-process tier already has the value; a persistent
			// tier failure costs durability, not correctness.
			s.log.Warn("persistent cache write failed",
				logger.CacheKey(key), logger.Err(err))
		}
	}
	return nil
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. Concurrent callers for the same cold key compute once.
func (s *Service) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error {
	if compute == nil {
		return ErrNilCompute
	}

	if err := s.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.Is(err, ErrMiss) {
		return err
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer func() {
		lock.Unlock()
		// Drop the per-key lock so the map does not grow with every key
		// ever computed. A racing cold read recreates it and re-checks
		// the tiers before computing.
		s.inflight.Delete(key)
	}()

	// Another caller may have filled the key while we waited.
	if err := s.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.Is(err, ErrMiss) {
		return err
	}

	value, err := compute(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.localSet(key, payload, ttl)
	if s.store != nil {
		if err := s.store.SetPayload(ctx, key, payload, ttl); err != nil {
			s.log.Warn("persistent cache write failed",
				logger.CacheKey(key), logger.Err(err))
		}
	}

	return json.Unmarshal(payload, dest)
}

// Invalidate removes a single key from both tiers.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	if s.store != nil {
		return s.store.Delete(ctx, key)
	}
	return nil
}

// InvalidateByPrefix removes every key starting with prefix from both tiers.
// Called when marks or composite configs change and all analytics scoped
// to the affected term must be recomputed.
func (s *Service) InvalidateByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()

	if s.store != nil {
		return s.store.DeleteByPrefix(ctx, prefix)
	}
	return nil
}

// Len returns the number of live in-process entries. Used by tests and
// the warm-up job's log line.
func (s *Service) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────────────────────────

func (s *Service) localGet(key string) ([]byte, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.expired(now) {
		s.mu.Lock()
		// Re-check under the write lock: a writer may have refreshed it.
		if cur, ok := s.entries[key]; ok && cur.expired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

func (s *Service) localSet(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = entry{
		payload:   payload,
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()
}

func (s *Service) keyLock(key string) *sync.Mutex {
	actual, _ := s.inflight.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
