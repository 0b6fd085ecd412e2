package subject

import (
	"context"

	"github.com/shulebook/shulebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации живут в internal/infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции чтения предметов.
type Repository interface {
	// ListByLevel возвращает все предметы уровня образования.
	ListByLevel(ctx context.Context, level shared.EducationLevel) ([]*Subject, error)

	// FindByName возвращает предмет по названию (без учёта регистра).
	// Возвращает shared.ErrSubjectNotFound, если предмет не найден.
	FindByName(ctx context.Context, name string, level shared.EducationLevel) (*Subject, error)
}

// ConfigRepository определяет операции над составными конфигурациями.
type ConfigRepository interface {
	// GetConfig возвращает конфигурацию составного предмета.
	// Возвращает shared.ErrConfigNotFound, если конфигурация отсутствует.
	GetConfig(ctx context.Context, subjectName string, level shared.EducationLevel) (*CompositeConfig, error)

	// SaveConfig сохраняет конфигурацию И перетегирует соответствующие
	// строки Subject (IsComposite/IsComponent/ComponentWeight) в ОДНОЙ
	// транзакции. Частичное применение - дефект целостности данных.
	SaveConfig(ctx context.Context, cfg *CompositeConfig) error

	// ToggleComposite переключает флаг IsComposite, сохраняя веса.
	// Возвращает новое значение флага.
	ToggleComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error)
}
