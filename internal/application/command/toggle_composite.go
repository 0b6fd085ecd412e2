package command

import (
	"context"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLE COMPOSITE COMMAND
// Переключает составную оценку предмета. Веса компонентов сохраняются:
// повторное включение восстанавливает прежнюю разбивку без перенастройки.
// ══════════════════════════════════════════════════════════════════════════════

// ToggleCompositeCommand содержит параметры команды.
type ToggleCompositeCommand struct {
	// SubjectName - название предмета.
	SubjectName string

	// EducationLevel - уровень образования.
	EducationLevel string
}

// Validate проверяет параметры команды.
func (c *ToggleCompositeCommand) Validate() error {
	if strings.TrimSpace(c.SubjectName) == "" {
		return shared.ErrEmptySubjectName
	}
	if _, err := shared.NewEducationLevel(c.EducationLevel); err != nil {
		return err
	}
	return nil
}

// ToggleCompositeResult содержит результат команды.
type ToggleCompositeResult struct {
	// IsComposite - новое значение флага.
	IsComposite bool `json:"is_composite"`
}

// ToggleCompositeHandler обрабатывает команду переключения.
type ToggleCompositeHandler struct {
	registry *subject.ConfigRegistry
	bus      shared.EventBus
	log      *logger.Logger
}

// NewToggleCompositeHandler создаёт новый обработчик.
func NewToggleCompositeHandler(registry *subject.ConfigRegistry, bus shared.EventBus, log *logger.Logger) *ToggleCompositeHandler {
	return &ToggleCompositeHandler{
		registry: registry,
		bus:      bus,
		log:      log,
	}
}

// Handle выполняет команду и возвращает новое состояние флага.
func (h *ToggleCompositeHandler) Handle(ctx context.Context, cmd ToggleCompositeCommand) (*ToggleCompositeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	enabled, err := h.registry.ToggleComposite(ctx, cmd.SubjectName, shared.EducationLevel(cmd.EducationLevel))
	if err != nil {
		return nil, err
	}

	if h.bus != nil {
		event := shared.NewCompositeConfigChangedEvent(
			shared.EventCompositeToggled,
			cmd.SubjectName, cmd.EducationLevel, enabled)
		if err := h.bus.Publish(event); err != nil {
			h.log.Error("failed to publish toggle event",
				logger.SubjectName(cmd.SubjectName), logger.Err(err))
		}
	}

	h.log.Info("composite toggled",
		logger.SubjectName(cmd.SubjectName),
		logger.String("education_level", cmd.EducationLevel),
		logger.Bool("is_composite", enabled))
	return &ToggleCompositeResult{IsComposite: enabled}, nil
}
