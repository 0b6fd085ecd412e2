package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook/internal/domain/grading"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
)

type fakeCalculator struct {
	score *grading.CompositeScore
	err   error

	// scores keys by composite name for multi-subject tests.
	scores map[string]*grading.CompositeScore
}

func (c *fakeCalculator) Compute(_ context.Context, _, compositeName, _, _ string, _ shared.EducationLevel) (*grading.CompositeScore, error) {
	if c.scores != nil {
		return c.scores[compositeName], c.err
	}
	return c.score, c.err
}

type fakeConfigChecker struct {
	composite bool
}

func (c *fakeConfigChecker) IsComposite(context.Context, string, shared.EducationLevel) (bool, error) {
	return c.composite, nil
}

func TestGetCompositeDisplayQuery_Validate(t *testing.T) {
	valid := GetCompositeDisplayQuery{
		StudentID:      "st1",
		SubjectName:    "English",
		EducationLevel: "upper_primary",
	}
	assert.NoError(t, valid.Validate())

	noStudent := valid
	noStudent.StudentID = " "
	assert.ErrorIs(t, noStudent.Validate(), shared.ErrEmptyValue)

	noSubject := valid
	noSubject.SubjectName = ""
	assert.ErrorIs(t, noSubject.Validate(), shared.ErrEmptySubjectName)

	badLevel := valid
	badLevel.EducationLevel = "nursery"
	assert.ErrorIs(t, badLevel.Validate(), shared.ErrInvalidLevel)
}

func TestGetCompositeDisplayHandler_WithMarks(t *testing.T) {
	score := &grading.CompositeScore{
		CompositeName: "English",
		CombinedPct:   78.0,
		Components: []grading.ComponentScore{
			{Name: "Grammar", Raw: 90, Max: 100, Pct: 90, Weight: 0.6, HasMark: true},
			{Name: "Composition", Raw: 60, Max: 100, Pct: 60, Weight: 0.4, HasMark: true},
		},
	}
	handler := NewGetCompositeDisplayHandler(&fakeCalculator{score: score}, &fakeConfigChecker{composite: true}, &fakeSubjectsRepo{})

	result, err := handler.Handle(context.Background(), GetCompositeDisplayQuery{
		StudentID:      "st1",
		SubjectName:    "English",
		TermID:         "t1",
		EducationLevel: "upper_primary",
	})
	require.NoError(t, err)

	assert.True(t, result.IsComposite)
	assert.True(t, result.HasMarks)
	require.NotNil(t, result.Score)
	assert.Equal(t, 78.0, result.Score.CombinedPct)
}

func TestGetCompositeDisplayHandler_CompositeWithoutMarks(t *testing.T) {
	// The calculator returns nil for "no marks"; the config registry
	// still reports the subject as composite.
	handler := NewGetCompositeDisplayHandler(&fakeCalculator{}, &fakeConfigChecker{composite: true}, &fakeSubjectsRepo{})

	result, err := handler.Handle(context.Background(), GetCompositeDisplayQuery{
		StudentID:      "st1",
		SubjectName:    "English",
		EducationLevel: "upper_primary",
	})
	require.NoError(t, err)

	assert.True(t, result.IsComposite)
	assert.False(t, result.HasMarks)
	assert.Nil(t, result.Score)
}

func TestGetCompositeDisplayHandler_PlainSubject(t *testing.T) {
	handler := NewGetCompositeDisplayHandler(&fakeCalculator{}, &fakeConfigChecker{composite: false}, &fakeSubjectsRepo{})

	result, err := handler.Handle(context.Background(), GetCompositeDisplayQuery{
		StudentID:      "st1",
		SubjectName:    "Mathematics",
		EducationLevel: "upper_primary",
	})
	require.NoError(t, err)

	assert.False(t, result.IsComposite)
	assert.False(t, result.HasMarks)
	assert.Nil(t, result.Score)
}

func TestGetStudentCompositesQuery_Validate(t *testing.T) {
	valid := GetStudentCompositesQuery{StudentID: "st1", EducationLevel: "upper_primary"}
	assert.NoError(t, valid.Validate())

	noStudent := valid
	noStudent.StudentID = ""
	assert.ErrorIs(t, noStudent.Validate(), shared.ErrEmptyValue)

	badLevel := valid
	badLevel.EducationLevel = "nursery"
	assert.ErrorIs(t, badLevel.Validate(), shared.ErrInvalidLevel)
}

func TestGetCompositeDisplayHandler_HandleAll(t *testing.T) {
	subjects := &fakeSubjectsRepo{subjects: []*subject.Subject{
		{Name: "English", IsComposite: true},
		{Name: "Kiswahili", IsComposite: true},
		{Name: "Mathematics"},
		{Name: "Grammar", IsComponent: true, CompositeParent: "English"},
	}}
	calculator := &fakeCalculator{scores: map[string]*grading.CompositeScore{
		"English": {CompositeName: "English", CombinedPct: 78.0},
		// Kiswahili has no marks: the calculator returns nil for it
	}}
	handler := NewGetCompositeDisplayHandler(calculator, &fakeConfigChecker{composite: true}, subjects)

	results, err := handler.HandleAll(context.Background(), GetStudentCompositesQuery{
		StudentID:      "st1",
		TermID:         "t1",
		EducationLevel: "upper_primary",
	})
	require.NoError(t, err)

	// Only composite parents appear, keyed by subject name
	require.Len(t, results, 2)
	assert.NotContains(t, results, "Mathematics")
	assert.NotContains(t, results, "Grammar")

	english := results["English"]
	require.NotNil(t, english)
	assert.True(t, english.IsComposite)
	assert.True(t, english.HasMarks)
	require.NotNil(t, english.Score)
	assert.Equal(t, 78.0, english.Score.CombinedPct)

	kiswahili := results["Kiswahili"]
	require.NotNil(t, kiswahili)
	assert.True(t, kiswahili.IsComposite)
	assert.False(t, kiswahili.HasMarks)
	assert.Nil(t, kiswahili.Score)
}
