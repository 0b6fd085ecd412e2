package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("subject", "GetConfig", ErrNotFound, "composite config not found")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestWrapError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("marks", "FetchRows", ErrPersistence, "query failed", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "marks.FetchRows")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSentinelErrors_MatchBaseKind(t *testing.T) {
	assert.ErrorIs(t, ErrSubjectNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrConfigNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrInvalidWeight, ErrValueOutOfRange)
	assert.ErrorIs(t, ErrDuplicateComponent, ErrAlreadyExists)
}
