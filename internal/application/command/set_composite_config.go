// Package command contains write operations following CQRS pattern.
// Commands modify state and publish the domain events that keep cached
// analytics consistent with the data they were computed from.
package command

import (
	"context"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET COMPOSITE CONFIG COMMAND
// Сохраняет разбиение составного предмета на компоненты и перетегирует
// строки Subject одной транзакцией.
// ══════════════════════════════════════════════════════════════════════════════

// ComponentInput - один компонент в команде конфигурации.
type ComponentInput struct {
	// Name - название компонента.
	Name string

	// Weight - вес компонента в [0, 1].
	Weight float64
}

// SetCompositeConfigCommand содержит параметры команды.
type SetCompositeConfigCommand struct {
	// SubjectName - название составного предмета.
	SubjectName string

	// EducationLevel - уровень образования.
	EducationLevel string

	// Components - компоненты с весами.
	Components []ComponentInput

	// IsComposite - включена ли составная оценка (по умолчанию true
	// при непустом списке компонентов).
	IsComposite bool
}

// Validate проверяет параметры команды. Детальная проверка компонентов
// (дубликаты, диапазоны весов) выполняется доменной моделью.
func (c *SetCompositeConfigCommand) Validate() error {
	if strings.TrimSpace(c.SubjectName) == "" {
		return shared.ErrEmptySubjectName
	}
	if _, err := shared.NewEducationLevel(c.EducationLevel); err != nil {
		return err
	}
	if len(c.Components) == 0 {
		return shared.ErrNoComponents
	}
	return nil
}

// SetCompositeConfigHandler обрабатывает команду конфигурации.
type SetCompositeConfigHandler struct {
	registry *subject.ConfigRegistry
	bus      shared.EventBus
	log      *logger.Logger
}

// NewSetCompositeConfigHandler создаёт новый обработчик.
func NewSetCompositeConfigHandler(registry *subject.ConfigRegistry, bus shared.EventBus, log *logger.Logger) *SetCompositeConfigHandler {
	return &SetCompositeConfigHandler{
		registry: registry,
		bus:      bus,
		log:      log,
	}
}

// Handle выполняет команду: валидация, транзакционная запись, событие.
// Событие публикуется ПОСЛЕ успешного коммита: подписчики инвалидации
// никогда не реагируют на откаченную запись.
func (h *SetCompositeConfigHandler) Handle(ctx context.Context, cmd SetCompositeConfigCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	components := make([]subject.Component, len(cmd.Components))
	for i, in := range cmd.Components {
		weight, err := shared.NewWeight(in.Weight)
		if err != nil {
			return err
		}
		components[i] = subject.Component{Name: in.Name, Weight: weight}
	}

	cfg := &subject.CompositeConfig{
		SubjectName:    cmd.SubjectName,
		EducationLevel: shared.EducationLevel(cmd.EducationLevel),
		IsComposite:    cmd.IsComposite,
		Components:     components,
	}

	if err := h.registry.SetConfig(ctx, cfg); err != nil {
		return err
	}

	if h.bus != nil {
		event := shared.NewCompositeConfigChangedEvent(
			shared.EventCompositeConfigSaved,
			cmd.SubjectName, cmd.EducationLevel, cmd.IsComposite)
		if err := h.bus.Publish(event); err != nil {
			// Запись удалась; потерянное событие стоит устаревшего кеша,
			// не целостности данных.
			h.log.Error("failed to publish config event",
				logger.SubjectName(cmd.SubjectName), logger.Err(err))
		}
	}

	h.log.Info("composite config set",
		logger.SubjectName(cmd.SubjectName),
		logger.String("education_level", cmd.EducationLevel),
		logger.Int("components", len(cmd.Components)))
	return nil
}
