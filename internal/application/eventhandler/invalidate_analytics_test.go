package eventhandler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/infrastructure/messaging"
	"github.com/shulebook/shulebook/pkg/logger"
)

// fakeInvalidator records invalidated prefixes.
type fakeInvalidator struct {
	prefixes []string
}

func (f *fakeInvalidator) InvalidateByPrefix(_ context.Context, prefix string) error {
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func registeredBus(t *testing.T, inv *fakeInvalidator) *messaging.InMemoryEventBus {
	t.Helper()
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := messaging.NewInMemoryEventBus(cfg)

	handler := NewInvalidateAnalyticsHandler(inv, logger.Discard())
	require.NoError(t, handler.Register(bus))
	return bus
}

func TestInvalidateAnalyticsHandler_MarksChangeTargetsTerm(t *testing.T) {
	inv := &fakeInvalidator{}
	bus := registeredBus(t, inv)
	defer bus.Close()

	event := shared.NewMarksChangedEvent(shared.EventMarksRecorded, "st1", "sub1", "t1", "mid")
	require.NoError(t, bus.Publish(event))

	require.Len(t, inv.prefixes, 1)
	assert.Equal(t, "analytics:term:t1", inv.prefixes[0])
}

func TestInvalidateAnalyticsHandler_MarksChangeWithoutTermSweepsAll(t *testing.T) {
	inv := &fakeInvalidator{}
	bus := registeredBus(t, inv)
	defer bus.Close()

	event := shared.NewMarksChangedEvent(shared.EventMarksDeleted, "st1", "sub1", "", "")
	require.NoError(t, bus.Publish(event))

	require.Len(t, inv.prefixes, 1)
	assert.Equal(t, "analytics", inv.prefixes[0])
}

func TestInvalidateAnalyticsHandler_ConfigChangeSweepsAll(t *testing.T) {
	inv := &fakeInvalidator{}
	bus := registeredBus(t, inv)
	defer bus.Close()

	saved := shared.NewCompositeConfigChangedEvent(shared.EventCompositeConfigSaved, "English", "upper_primary", true)
	require.NoError(t, bus.Publish(saved))

	toggled := shared.NewCompositeConfigChangedEvent(shared.EventCompositeToggled, "English", "upper_primary", false)
	require.NoError(t, bus.Publish(toggled))

	assert.Equal(t, []string{"analytics", "analytics"}, inv.prefixes)
}

func TestInvalidateAnalyticsHandler_IgnoresUnrelatedEvents(t *testing.T) {
	inv := &fakeInvalidator{}
	bus := registeredBus(t, inv)
	defer bus.Close()

	event := shared.NewWarmupCompletedEvent("run1", 4, 0, 0)
	require.NoError(t, bus.Publish(event))

	assert.Empty(t, inv.prefixes)
}
