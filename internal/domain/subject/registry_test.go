package subject

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

// fakeConfigRepo is an in-memory ConfigRepository that counts calls.
type fakeConfigRepo struct {
	configs  map[string]*CompositeConfig
	getCalls int
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[string]*CompositeConfig)}
}

func (r *fakeConfigRepo) key(name string, level shared.EducationLevel) string {
	return NormalizeName(name) + "|" + level.String()
}

func (r *fakeConfigRepo) GetConfig(_ context.Context, name string, level shared.EducationLevel) (*CompositeConfig, error) {
	r.getCalls++
	cfg, ok := r.configs[r.key(name, level)]
	if !ok {
		return nil, shared.ErrConfigNotFound
	}
	return cfg, nil
}

func (r *fakeConfigRepo) SaveConfig(_ context.Context, cfg *CompositeConfig) error {
	stored := *cfg
	r.configs[r.key(cfg.SubjectName, cfg.EducationLevel)] = &stored
	return nil
}

func (r *fakeConfigRepo) ToggleComposite(_ context.Context, name string, level shared.EducationLevel) (bool, error) {
	cfg, ok := r.configs[r.key(name, level)]
	if !ok {
		return false, shared.ErrConfigNotFound
	}
	cfg.IsComposite = !cfg.IsComposite
	return cfg.IsComposite, nil
}

func englishConfig() *CompositeConfig {
	return &CompositeConfig{
		ID:             "cfg1",
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Composition", Weight: 0.4},
		},
	}
}

func TestConfigRegistry_GetConfig_Memoizes(t *testing.T) {
	repo := newFakeConfigRepo()
	require.NoError(t, repo.SaveConfig(context.Background(), englishConfig()))

	registry := NewConfigRegistry(repo, logger.Discard())

	cfg, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "English", cfg.SubjectName)
	assert.Equal(t, 1, repo.getCalls)

	// Second lookup hits the memo; name matching is case-insensitive
	cfg, err = registry.GetConfig(context.Background(), "  ENGLISH ", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, repo.getCalls)
}

func TestConfigRegistry_GetConfig_NotComposite(t *testing.T) {
	repo := newFakeConfigRepo()
	registry := NewConfigRegistry(repo, logger.Discard())

	// Missing config is the safe default, not an error
	cfg, err := registry.GetConfig(context.Background(), "Mathematics", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	// The negative result is memoized too
	_, err = registry.GetConfig(context.Background(), "Mathematics", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
}

func TestConfigRegistry_GetConfig_DisabledConfigIsPlain(t *testing.T) {
	repo := newFakeConfigRepo()
	disabled := englishConfig()
	disabled.IsComposite = false
	require.NoError(t, repo.SaveConfig(context.Background(), disabled))

	registry := NewConfigRegistry(repo, logger.Discard())

	cfg, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	enabled, err := registry.IsComposite(context.Background(), "English", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.False(t, enabled)
}

func TestConfigRegistry_GetConfig_Validation(t *testing.T) {
	registry := NewConfigRegistry(newFakeConfigRepo(), logger.Discard())

	_, err := registry.GetConfig(context.Background(), "  ", shared.LevelUpperPrimary)
	assert.ErrorIs(t, err, shared.ErrEmptySubjectName)

	_, err = registry.GetConfig(context.Background(), "English", "nursery")
	assert.ErrorIs(t, err, shared.ErrInvalidLevel)
}

func TestConfigRegistry_TTLExpiry(t *testing.T) {
	repo := newFakeConfigRepo()
	require.NoError(t, repo.SaveConfig(context.Background(), englishConfig()))

	// Zero TTL means every lookup goes to the repository
	registry := NewConfigRegistry(repo, logger.Discard()).WithTTL(time.Duration(0))

	_, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	_, err = registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getCalls)
}

func TestConfigRegistry_SetConfig_InvalidatesMemo(t *testing.T) {
	repo := newFakeConfigRepo()
	registry := NewConfigRegistry(repo, logger.Discard())

	// Prime the memo with "not composite"
	cfg, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.Nil(t, cfg)

	require.NoError(t, registry.SetConfig(context.Background(), englishConfig()))

	cfg, err = registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Len(t, cfg.Components, 2)
}

func TestConfigRegistry_SetConfig_RejectsInvalid(t *testing.T) {
	registry := NewConfigRegistry(newFakeConfigRepo(), logger.Discard())

	err := registry.SetConfig(context.Background(), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	err = registry.SetConfig(context.Background(), &CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
	})
	assert.ErrorIs(t, err, shared.ErrNoComponents)
}

func TestConfigRegistry_ToggleComposite(t *testing.T) {
	repo := newFakeConfigRepo()
	require.NoError(t, repo.SaveConfig(context.Background(), englishConfig()))

	registry := NewConfigRegistry(repo, logger.Discard())

	// Prime the memo so the toggle has something to invalidate
	_, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)

	enabled, err := registry.ToggleComposite(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Toggle off: the subject now resolves as plain
	cfg, err := registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	// Toggle back on: the stored weights survive
	enabled, err = registry.ToggleComposite(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	assert.True(t, enabled)

	cfg, err = registry.GetConfig(context.Background(), "English", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 0.6, cfg.Components[0].Weight.Float64())
}
