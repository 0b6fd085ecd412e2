package subject

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG REGISTRY
// Разрешает название предмета + уровень образования в составную конфигурацию.
// Листовая зависимость калькулятора и агрегатора.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultConfigTTL - время жизни записи в локальном кеше конфигураций.
// Конфигурации меняются редко, но перетегирование через SetConfig должно
// стать видимым без рестарта процесса.
const DefaultConfigTTL = 5 * time.Minute

// cachedConfig - запись локального кеша. После создания неизменяема.
type cachedConfig struct {
	cfg       *CompositeConfig // nil означает "предмет не составной"
	createdAt time.Time
}

// ConfigRegistry разрешает составные конфигурации с локальной мемоизацией.
// Отсутствующая конфигурация - не ошибка: предмет считается обычным.
type ConfigRegistry struct {
	repo ConfigRepository
	log  *logger.Logger
	ttl  time.Duration

	mu   sync.RWMutex
	memo map[string]cachedConfig
}

// NewConfigRegistry создаёт новый реестр конфигураций.
func NewConfigRegistry(repo ConfigRepository, log *logger.Logger) *ConfigRegistry {
	return &ConfigRegistry{
		repo: repo,
		log:  log,
		ttl:  DefaultConfigTTL,
		memo: make(map[string]cachedConfig),
	}
}

// WithTTL задаёт время жизни локального кеша (для тестов и тонкой настройки).
func (r *ConfigRegistry) WithTTL(ttl time.Duration) *ConfigRegistry {
	r.ttl = ttl
	return r
}

// memoKey строит ключ локального кеша.
func memoKey(subjectName string, level shared.EducationLevel) string {
	return NormalizeName(subjectName) + "|" + level.String()
}

// GetConfig возвращает составную конфигурацию предмета или nil, если предмет
// не сконфигурирован как составной. Сопоставление имени регистронезависимое.
// Отсутствие конфигурации логируется только на уровне debug.
func (r *ConfigRegistry) GetConfig(ctx context.Context, subjectName string, level shared.EducationLevel) (*CompositeConfig, error) {
	if NormalizeName(subjectName) == "" {
		return nil, shared.ErrEmptySubjectName
	}
	if !level.IsValid() {
		return nil, shared.ErrInvalidLevel
	}

	key := memoKey(subjectName, level)

	// Быстрый путь: локальный кеш
	r.mu.RLock()
	entry, ok := r.memo[key]
	r.mu.RUnlock()
	if ok && time.Since(entry.createdAt) < r.ttl {
		return entry.cfg, nil
	}

	cfg, err := r.repo.GetConfig(ctx, subjectName, level)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Безопасное значение по умолчанию: предмет не составной
			r.log.Debug("no composite config, treating as plain subject",
				logger.F("subject", subjectName),
				logger.F("level", level.String()),
			)
			r.store(key, nil)
			return nil, nil
		}
		return nil, shared.WrapError("subject", "GetConfig", shared.ErrPersistence,
			"failed to load composite config", err)
	}

	if cfg != nil && !cfg.IsComposite {
		// Составная оценка выключена - трактуем как обычный предмет,
		// но веса остаются сохранёнными.
		r.store(key, nil)
		return nil, nil
	}

	r.store(key, cfg)
	return cfg, nil
}

// IsComposite возвращает true, если предмет сконфигурирован как составной
// и составная оценка включена.
func (r *ConfigRegistry) IsComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error) {
	cfg, err := r.GetConfig(ctx, subjectName, level)
	if err != nil {
		return false, err
	}
	return cfg != nil, nil
}

// SetConfig валидирует и сохраняет конфигурацию сквозной записью
// (конфигурация + перетегирование Subject в одной транзакции).
func (r *ConfigRegistry) SetConfig(ctx context.Context, cfg *CompositeConfig) error {
	if cfg == nil {
		return shared.ErrInvalidInput
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Сумма весов должна быть 1.0, но это не форсируется: нормализация
	// по присутствующим весам делает любую корректную сумму рабочей.
	if sum := cfg.WeightSum(); sum < 0.999 || sum > 1.001 {
		r.log.Warn("component weights do not sum to 1.0",
			logger.F("subject", cfg.SubjectName),
			logger.F("level", cfg.EducationLevel.String()),
			logger.F("weight_sum", sum),
		)
	}

	if err := r.repo.SaveConfig(ctx, cfg); err != nil {
		return shared.WrapError("subject", "SetConfig", shared.ErrPersistence,
			"failed to save composite config", err)
	}

	r.invalidate(memoKey(cfg.SubjectName, cfg.EducationLevel))
	return nil
}

// ToggleComposite переключает составную оценку предмета, сохраняя веса.
func (r *ConfigRegistry) ToggleComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error) {
	if NormalizeName(subjectName) == "" {
		return false, shared.ErrEmptySubjectName
	}
	if !level.IsValid() {
		return false, shared.ErrInvalidLevel
	}

	enabled, err := r.repo.ToggleComposite(ctx, subjectName, level)
	if err != nil {
		return false, shared.WrapError("subject", "ToggleComposite", shared.ErrPersistence,
			"failed to toggle composite flag", err)
	}

	r.invalidate(memoKey(subjectName, level))
	return enabled, nil
}

// ClearMemo полностью сбрасывает локальный кеш конфигураций.
func (r *ConfigRegistry) ClearMemo() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo = make(map[string]cachedConfig)
}

// store записывает значение в локальный кеш.
func (r *ConfigRegistry) store(key string, cfg *CompositeConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[key] = cachedConfig{cfg: cfg, createdAt: time.Now()}
}

// invalidate удаляет запись из локального кеша.
func (r *ConfigRegistry) invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memo, key)
}
