// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Data quality errors
	ErrDataIntegrity = errors.New("data integrity violation")
	ErrOrphanedRow   = errors.New("orphaned row")

	// External collaborator errors
	ErrPersistence        = errors.New("persistence failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "subject", "marks", "analytics"
	Op      string // Operation that failed, e.g., "SetConfig", "Aggregate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Subject domain errors
var (
	ErrSubjectNotFound    = NewDomainError("subject", "Find", ErrNotFound, "subject not found")
	ErrConfigNotFound     = NewDomainError("subject", "GetConfig", ErrNotFound, "composite config not found")
	ErrInvalidLevel       = NewDomainError("subject", "Validate", ErrInvalidInput, "invalid education level")
	ErrEmptySubjectName   = NewDomainError("subject", "Validate", ErrEmptyValue, "subject name cannot be empty")
	ErrNoComponents       = NewDomainError("subject", "SetConfig", ErrInvalidInput, "composite config must have at least one component")
	ErrInvalidWeight      = NewDomainError("subject", "Validate", ErrValueOutOfRange, "component weight must be within [0, 1]")
	ErrDuplicateComponent = NewDomainError("subject", "SetConfig", ErrAlreadyExists, "duplicate component name")
)

// Marks domain errors
var (
	ErrInvalidRawMark = NewDomainError("marks", "Validate", ErrValueOutOfRange, "raw mark must be non-negative and finite")
	ErrInvalidMaxMark = NewDomainError("marks", "Validate", ErrValueOutOfRange, "max raw mark must be positive")
)

// Analytics domain errors
var (
	ErrEmptyFilter       = NewDomainError("analytics", "Validate", ErrInvalidInput, "filter matches nothing")
	ErrAggregationFailed = NewDomainError("analytics", "Aggregate", ErrPersistence, "aggregation failed")
)
