package command

import (
	"context"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFY MARKS CHANGED COMMAND
// Сами оценки пишет внешний контур ввода; аналитическое ядро узнаёт об
// изменении через эту команду и инвалидирует затронутые ключи кеша.
// ══════════════════════════════════════════════════════════════════════════════

// ChangeKind - вид изменения оценки.
type ChangeKind string

const (
	ChangeRecorded ChangeKind = "recorded"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
)

// eventTypeFor сопоставляет вид изменения с типом события.
func eventTypeFor(kind ChangeKind) (shared.EventType, bool) {
	switch kind {
	case ChangeRecorded:
		return shared.EventMarksRecorded, true
	case ChangeUpdated:
		return shared.EventMarksUpdated, true
	case ChangeDeleted:
		return shared.EventMarksDeleted, true
	default:
		return "", false
	}
}

// NotifyMarksChangedCommand содержит скоуп изменения.
type NotifyMarksChangedCommand struct {
	// Kind - вид изменения.
	Kind ChangeKind

	// StudentID / SubjectID / TermID / AssessmentTypeID - скоуп
	// изменённой оценки.
	StudentID        string
	SubjectID        string
	TermID           string
	AssessmentTypeID string
}

// Validate проверяет параметры команды.
func (c *NotifyMarksChangedCommand) Validate() error {
	if _, ok := eventTypeFor(c.Kind); !ok {
		return shared.NewDomainError("command", "NotifyMarksChanged",
			shared.ErrInvalidInput, "unknown change kind")
	}
	if strings.TrimSpace(c.TermID) == "" {
		return shared.NewDomainError("command", "NotifyMarksChanged",
			shared.ErrEmptyValue, "term ID is required")
	}
	return nil
}

// NotifyMarksChangedHandler публикует событие изменения оценок.
type NotifyMarksChangedHandler struct {
	bus shared.EventBus
	log *logger.Logger
}

// NewNotifyMarksChangedHandler создаёт новый обработчик.
func NewNotifyMarksChangedHandler(bus shared.EventBus, log *logger.Logger) *NotifyMarksChangedHandler {
	return &NotifyMarksChangedHandler{bus: bus, log: log}
}

// Handle публикует событие изменения.
func (h *NotifyMarksChangedHandler) Handle(ctx context.Context, cmd NotifyMarksChangedCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	eventType, _ := eventTypeFor(cmd.Kind)
	event := shared.NewMarksChangedEvent(eventType,
		cmd.StudentID, cmd.SubjectID, cmd.TermID, cmd.AssessmentTypeID)

	if err := h.bus.Publish(event); err != nil {
		return shared.WrapError("command", "NotifyMarksChanged",
			shared.ErrServiceUnavailable, "failed to publish marks event", err)
	}

	h.log.Debug("marks change published",
		logger.StudentID(cmd.StudentID),
		logger.TermID(cmd.TermID),
		logger.String("kind", string(cmd.Kind)))
	return nil
}
