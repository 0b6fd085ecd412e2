// Package eventhandler contains the subscribers that react to domain events.
package eventhandler

import (
	"context"
	"time"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS INVALIDATION
// Изменение оценок или составной конфигурации делает кешированную аналитику
// устаревшей. Подписчик снимает затронутые ключи из обоих уровней кеша.
// ══════════════════════════════════════════════════════════════════════════════

// invalidateTimeout ограничивает время одной инвалидации.
const invalidateTimeout = 10 * time.Second

// Invalidator снимает ключи кеша по префиксу.
// Реализуется cache.Service.
type Invalidator interface {
	InvalidateByPrefix(ctx context.Context, prefix string) error
}

// InvalidateAnalyticsHandler инвалидирует кеш аналитики по событиям.
type InvalidateAnalyticsHandler struct {
	cache Invalidator
	log   *logger.Logger
}

// NewInvalidateAnalyticsHandler создаёт новый обработчик.
func NewInvalidateAnalyticsHandler(cache Invalidator, log *logger.Logger) *InvalidateAnalyticsHandler {
	return &InvalidateAnalyticsHandler{cache: cache, log: log}
}

// Register подписывает обработчик на все релевантные события.
func (h *InvalidateAnalyticsHandler) Register(bus shared.EventBus) error {
	for _, eventType := range []shared.EventType{
		shared.EventMarksRecorded,
		shared.EventMarksUpdated,
		shared.EventMarksDeleted,
	} {
		if err := bus.Subscribe(eventType, h.OnMarksChanged); err != nil {
			return err
		}
	}
	for _, eventType := range []shared.EventType{
		shared.EventCompositeConfigSaved,
		shared.EventCompositeToggled,
	} {
		if err := bus.Subscribe(eventType, h.OnConfigChanged); err != nil {
			return err
		}
	}
	return nil
}

// OnMarksChanged инвалидирует ключи терма, в котором изменились оценки.
// Ключи аналитики хешированы, поэтому адресная инвалидация возможна только
// на уровне пространства имён: "analytics:term:<termID>" снимает все
// свёртки терма разом, остальные термы не трогаются.
func (h *InvalidateAnalyticsHandler) OnMarksChanged(event shared.Event) error {
	marksEvent, ok := event.(shared.MarksChangedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	prefix := "analytics:term:" + marksEvent.TermID
	if marksEvent.TermID == "" {
		prefix = "analytics"
	}

	if err := h.cache.InvalidateByPrefix(ctx, prefix); err != nil {
		h.log.Error("analytics invalidation failed",
			logger.TermID(marksEvent.TermID), logger.Err(err))
		return err
	}

	h.log.Info("analytics invalidated",
		logger.TermID(marksEvent.TermID),
		logger.String("trigger", string(event.EventType())))
	return nil
}

// OnConfigChanged инвалидирует ВСЮ аналитику: изменение разбиения
// составного предмета меняет подстановку во всех термах сразу.
func (h *InvalidateAnalyticsHandler) OnConfigChanged(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := h.cache.InvalidateByPrefix(ctx, "analytics"); err != nil {
		h.log.Error("analytics invalidation failed", logger.Err(err))
		return err
	}

	h.log.Info("analytics invalidated",
		logger.String("trigger", string(event.EventType())))
	return nil
}
