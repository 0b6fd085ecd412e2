// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one marks a change that makes cached
// analytics stale somewhere.
const (
	// Marks events
	EventMarksRecorded EventType = "marks.recorded"
	EventMarksUpdated  EventType = "marks.updated"
	EventMarksDeleted  EventType = "marks.deleted"

	// Subject configuration events
	EventCompositeConfigSaved EventType = "subject.composite_config_saved"
	EventCompositeToggled     EventType = "subject.composite_toggled"

	// System events
	EventWarmupCompleted EventType = "system.warmup_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a published event.
type EventHandler func(event Event) error

// EventBus publishes domain events to subscribed handlers.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Marks Events
// ═══════════════════════════════════════════════════════════════════════════

// MarksChangedEvent is emitted when marks are recorded, updated or deleted.
// Carries the scope of the change so invalidation can target only the
// analytics keys derived from it.
type MarksChangedEvent struct {
	BaseEvent
	StudentID        string `json:"student_id"`
	SubjectID        string `json:"subject_id"`
	TermID           string `json:"term_id"`
	AssessmentTypeID string `json:"assessment_type_id"`
	GradeID          string `json:"grade_id,omitempty"`
	StreamID         string `json:"stream_id,omitempty"`
}

// Payload implements Event interface.
func (e MarksChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"subject_id":         e.SubjectID,
		"term_id":            e.TermID,
		"assessment_type_id": e.AssessmentTypeID,
		"grade_id":           e.GradeID,
		"stream_id":          e.StreamID,
	}
}

// NewMarksChangedEvent creates a MarksChangedEvent with the given type,
// which must be one of the marks.* event types.
func NewMarksChangedEvent(eventType EventType, studentID, subjectID, termID, assessmentTypeID string) MarksChangedEvent {
	return MarksChangedEvent{
		BaseEvent:        NewBaseEvent(eventType, studentID),
		StudentID:        studentID,
		SubjectID:        subjectID,
		TermID:           termID,
		AssessmentTypeID: assessmentTypeID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Subject Configuration Events
// ═══════════════════════════════════════════════════════════════════════════

// CompositeConfigChangedEvent is emitted when a composite configuration
// is saved or its flag is toggled. Any cached analytics touching the
// subject's education level must be recomputed.
type CompositeConfigChangedEvent struct {
	BaseEvent
	SubjectName    string `json:"subject_name"`
	EducationLevel string `json:"education_level"`
	IsComposite    bool   `json:"is_composite"`
}

// Payload implements Event interface.
func (e CompositeConfigChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"subject_name":    e.SubjectName,
		"education_level": e.EducationLevel,
		"is_composite":    e.IsComposite,
	}
}

// NewCompositeConfigChangedEvent creates a CompositeConfigChangedEvent.
func NewCompositeConfigChangedEvent(eventType EventType, subjectName, educationLevel string, isComposite bool) CompositeConfigChangedEvent {
	return CompositeConfigChangedEvent{
		BaseEvent:      NewBaseEvent(eventType, subjectName),
		SubjectName:    subjectName,
		EducationLevel: educationLevel,
		IsComposite:    isComposite,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// WarmupCompletedEvent is emitted when a scheduled cache warm-up run ends.
type WarmupCompletedEvent struct {
	BaseEvent
	RunID       string `json:"run_id"`
	ScopesWarm  int    `json:"scopes_warm"`
	ScopesError int    `json:"scopes_error"`
	DurationMS  int64  `json:"duration_ms"`
}

// Payload implements Event interface.
func (e WarmupCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"run_id":       e.RunID,
		"scopes_warm":  e.ScopesWarm,
		"scopes_error": e.ScopesError,
		"duration_ms":  e.DurationMS,
	}
}

// NewWarmupCompletedEvent creates a WarmupCompletedEvent.
func NewWarmupCompletedEvent(runID string, warm, errs int, duration time.Duration) WarmupCompletedEvent {
	return WarmupCompletedEvent{
		BaseEvent:   NewBaseEvent(EventWarmupCompleted, runID),
		RunID:       runID,
		ScopesWarm:  warm,
		ScopesError: errs,
		DurationMS:  duration.Milliseconds(),
	}
}
