package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

func TestNotifyMarksChangedCommand_Validate(t *testing.T) {
	valid := NotifyMarksChangedCommand{Kind: ChangeRecorded, TermID: "t1"}
	assert.NoError(t, valid.Validate())

	badKind := NotifyMarksChangedCommand{Kind: "archived", TermID: "t1"}
	assert.ErrorIs(t, badKind.Validate(), shared.ErrInvalidInput)

	noTerm := NotifyMarksChangedCommand{Kind: ChangeUpdated}
	assert.ErrorIs(t, noTerm.Validate(), shared.ErrEmptyValue)
}

func TestNotifyMarksChangedHandler_PublishesEventPerKind(t *testing.T) {
	bus := &recordingBus{}
	handler := NewNotifyMarksChangedHandler(bus, logger.Discard())

	kinds := map[ChangeKind]shared.EventType{
		ChangeRecorded: shared.EventMarksRecorded,
		ChangeUpdated:  shared.EventMarksUpdated,
		ChangeDeleted:  shared.EventMarksDeleted,
	}

	for kind, wantType := range kinds {
		bus.events = nil
		err := handler.Handle(context.Background(), NotifyMarksChangedCommand{
			Kind:      kind,
			StudentID: "st1",
			SubjectID: "sub1",
			TermID:    "t1",
		})
		require.NoError(t, err)
		require.Len(t, bus.events, 1)
		assert.Equal(t, wantType, bus.events[0].EventType())

		event, ok := bus.events[0].(shared.MarksChangedEvent)
		require.True(t, ok)
		assert.Equal(t, "t1", event.TermID)
		assert.Equal(t, "st1", event.StudentID)
	}
}

func TestNotifyMarksChangedHandler_RejectsInvalidCommand(t *testing.T) {
	bus := &recordingBus{}
	handler := NewNotifyMarksChangedHandler(bus, logger.Discard())

	err := handler.Handle(context.Background(), NotifyMarksChangedCommand{Kind: ChangeRecorded})
	assert.Error(t, err)
	assert.Empty(t, bus.events)
}
