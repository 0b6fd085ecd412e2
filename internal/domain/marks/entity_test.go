package marks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shulebook/shulebook/internal/domain/shared"
)

func TestMark_ComputedPercentage(t *testing.T) {
	mark := &Mark{RawMark: 40, MaxRawMark: 80}
	assert.Equal(t, 50.0, mark.ComputedPercentage().Float64())

	// The stored Percentage field is never trusted on read
	stale := &Mark{RawMark: 40, MaxRawMark: 80, Percentage: 99}
	assert.Equal(t, 50.0, stale.ComputedPercentage().Float64())

	// Non-positive max yields zero rather than dividing by zero
	broken := &Mark{RawMark: 40, MaxRawMark: 0}
	assert.Equal(t, 0.0, broken.ComputedPercentage().Float64())
}

func TestMark_Validate(t *testing.T) {
	assert.NoError(t, (&Mark{RawMark: 0, MaxRawMark: 100}).Validate())
	assert.NoError(t, (&Mark{RawMark: 100, MaxRawMark: 100}).Validate())

	assert.ErrorIs(t, (&Mark{RawMark: -1, MaxRawMark: 100}).Validate(), shared.ErrInvalidRawMark)
	assert.ErrorIs(t, (&Mark{RawMark: math.NaN(), MaxRawMark: 100}).Validate(), shared.ErrInvalidRawMark)
	assert.ErrorIs(t, (&Mark{RawMark: 50, MaxRawMark: 0}).Validate(), shared.ErrInvalidMaxMark)
	assert.ErrorIs(t, (&Mark{RawMark: 50, MaxRawMark: math.Inf(1)}).Validate(), shared.ErrInvalidMaxMark)
}

func TestRow_IsOrphaned(t *testing.T) {
	complete := Row{
		Mark:        Mark{StudentID: "st1", SubjectID: "sub1"},
		StudentName: "Amina",
		SubjectName: "Mathematics",
		GradeID:     "g4",
		StreamID:    "g4w",
	}
	assert.False(t, complete.IsOrphaned())

	noSubject := complete
	noSubject.SubjectName = ""
	assert.True(t, noSubject.IsOrphaned())

	noStream := complete
	noStream.StreamID = "  "
	assert.True(t, noStream.IsOrphaned())

	noStudent := complete
	noStudent.StudentID = ""
	assert.True(t, noStudent.IsOrphaned())
}

func TestFilter_IsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{TermID: "t1"}.IsZero())
	assert.False(t, Filter{SubjectIDs: []string{"s1"}}.IsZero())
	assert.False(t, Filter{EducationLevel: shared.LevelLowerPrimary}.IsZero())
}
