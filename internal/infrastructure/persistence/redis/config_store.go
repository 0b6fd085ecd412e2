// Package redis implements the persistent cache tier for Shulebook analytics.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG SNAPSHOT STORE
// Read-through decorator over the postgres config repository. Composite
// configs change rarely and are read on every composite computation, so
// snapshots in Redis let sibling processes skip the database. Writes go
// to postgres and drop the snapshot; the registry's in-process memo sits
// above this layer.
// ══════════════════════════════════════════════════════════════════════════════

// kvStore is the subset of Cache the config store needs.
type kvStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// ConfigStore implements subject.ConfigRepository with Redis snapshots.
type ConfigStore struct {
	inner subject.ConfigRepository
	kv    kvStore
	log   *logger.Logger
}

// NewConfigStore creates a ConfigStore over the inner repository.
func NewConfigStore(inner subject.ConfigRepository, kv kvStore, log *logger.Logger) *ConfigStore {
	return &ConfigStore{
		inner: inner,
		kv:    kv,
		log:   log.With(logger.String("component", "config_store")),
	}
}

// configKey builds the snapshot key for a subject at a level.
func configKey(subjectName string, level shared.EducationLevel) string {
	return PrefixConfig + level.String() + ":" + subject.NormalizeName(subjectName)
}

// GetConfig returns the config from the snapshot when present, falling
// back to the inner repository. A degraded Redis slows reads down but
// never fails them; ErrConfigNotFound is never cached.
func (s *ConfigStore) GetConfig(ctx context.Context, subjectName string, level shared.EducationLevel) (*subject.CompositeConfig, error) {
	key := configKey(subjectName, level)

	var snapshot subject.CompositeConfig
	err := s.kv.Get(ctx, key, &snapshot)
	if err == nil {
		return &snapshot, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("config snapshot read failed",
			logger.SubjectName(subjectName), logger.Err(err))
	}

	cfg, err := s.inner.GetConfig(ctx, subjectName, level)
	if err != nil {
		return nil, err
	}

	if err := s.kv.Set(ctx, key, cfg, TTLConfigSnapshot); err != nil {
		s.log.Warn("config snapshot write failed",
			logger.SubjectName(subjectName), logger.Err(err))
	}
	return cfg, nil
}

// SaveConfig persists through the inner repository and drops the snapshot.
func (s *ConfigStore) SaveConfig(ctx context.Context, cfg *subject.CompositeConfig) error {
	if err := s.inner.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	s.dropSnapshot(ctx, cfg.SubjectName, cfg.EducationLevel)
	return nil
}

// ToggleComposite toggles through the inner repository and drops the snapshot.
func (s *ConfigStore) ToggleComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error) {
	enabled, err := s.inner.ToggleComposite(ctx, subjectName, level)
	if err != nil {
		return false, err
	}
	s.dropSnapshot(ctx, subjectName, level)
	return enabled, nil
}

// dropSnapshot removes a stale snapshot. A failed delete leaves the old
// snapshot to expire on its TTL, so it is logged, not returned.
func (s *ConfigStore) dropSnapshot(ctx context.Context, subjectName string, level shared.EducationLevel) {
	if err := s.kv.Delete(ctx, configKey(subjectName, level)); err != nil {
		s.log.Warn("config snapshot delete failed",
			logger.SubjectName(subjectName), logger.Err(err))
	}
}
