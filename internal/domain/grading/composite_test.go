package grading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeResolver struct {
	cfg *subject.CompositeConfig
}

func (r *fakeResolver) GetConfig(context.Context, string, shared.EducationLevel) (*subject.CompositeConfig, error) {
	return r.cfg, nil
}

type fakeSubjects struct {
	byName map[string]*subject.Subject
}

func (r *fakeSubjects) ListByLevel(context.Context, shared.EducationLevel) ([]*subject.Subject, error) {
	out := make([]*subject.Subject, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSubjects) FindByName(_ context.Context, name string, _ shared.EducationLevel) (*subject.Subject, error) {
	s, ok := r.byName[subject.NormalizeName(name)]
	if !ok {
		return nil, shared.ErrSubjectNotFound
	}
	return s, nil
}

type fakeMarks struct {
	byStudentSubject map[string]*marks.Mark // key: studentID|subjectID
}

func (r *fakeMarks) FetchRows(context.Context, marks.Filter) ([]marks.Row, error) {
	return nil, nil
}

func (r *fakeMarks) FindMarksBySubjects(_ context.Context, studentID, _, _ string, subjectIDs []string) (map[string]*marks.Mark, error) {
	out := make(map[string]*marks.Mark)
	for _, id := range subjectIDs {
		if m, ok := r.byStudentSubject[studentID+"|"+id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

func englishCalculator(markSet map[string]*marks.Mark) *Calculator {
	resolver := &fakeResolver{cfg: &subject.CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []subject.Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Composition", Weight: 0.4},
		},
	}}
	subjects := &fakeSubjects{byName: map[string]*subject.Subject{
		"grammar":     {ID: "sub-grammar", Name: "Grammar", EducationLevel: shared.LevelUpperPrimary},
		"composition": {ID: "sub-composition", Name: "Composition", EducationLevel: shared.LevelUpperPrimary},
	}}
	return NewCalculator(resolver, subjects, &fakeMarks{byStudentSubject: markSet}, logger.Discard())
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestCalculator_Compute_AllComponentsMarked(t *testing.T) {
	calc := englishCalculator(map[string]*marks.Mark{
		"st1|sub-grammar":     {RawMark: 40, MaxRawMark: 80},  // 50%
		"st1|sub-composition": {RawMark: 15, MaxRawMark: 30},  // 50%
	})

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)

	assert.Equal(t, "English", score.CompositeName)
	assert.Equal(t, 50.0, score.CombinedPct)
	require.Len(t, score.Components, 2)

	grammar := score.Components[0]
	assert.Equal(t, "Grammar", grammar.Name)
	assert.Equal(t, 40.0, grammar.Raw)
	assert.Equal(t, 80.0, grammar.Max)
	assert.Equal(t, 50.0, grammar.Pct)
	assert.Equal(t, 0.6, grammar.Weight)
	assert.True(t, grammar.HasMark)
}

func TestCalculator_Compute_WeightedCombination(t *testing.T) {
	calc := englishCalculator(map[string]*marks.Mark{
		"st1|sub-grammar":     {RawMark: 90, MaxRawMark: 100}, // 90%
		"st1|sub-composition": {RawMark: 60, MaxRawMark: 100}, // 60%
	})

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)

	// 90*0.6 + 60*0.4 = 78
	assert.Equal(t, 78.0, score.CombinedPct)
}

func TestCalculator_Compute_MissingComponentNormalizes(t *testing.T) {
	// Only Grammar is marked: the combined score is Grammar's percentage,
	// normalized over the present weight instead of dragged down by the
	// absent Composition.
	calc := englishCalculator(map[string]*marks.Mark{
		"st1|sub-grammar": {RawMark: 56, MaxRawMark: 80}, // 70%
	})

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)

	assert.Equal(t, 70.0, score.CombinedPct)
	require.Len(t, score.Components, 2)

	missing := score.Components[1]
	assert.Equal(t, "Composition", missing.Name)
	assert.False(t, missing.HasMark)
	assert.Equal(t, 0.0, missing.Raw)
	assert.Equal(t, 100.0, missing.Max)
	assert.Equal(t, 0.0, missing.Pct)
}

func TestCalculator_Compute_EqualWeightsSingleMark(t *testing.T) {
	resolver := &fakeResolver{cfg: &subject.CompositeConfig{
		SubjectName:    "Kiswahili",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []subject.Component{
			{Name: "Lugha", Weight: 0.5},
			{Name: "Insha", Weight: 0.5},
		},
	}}
	subjects := &fakeSubjects{byName: map[string]*subject.Subject{
		"lugha": {ID: "sub-lugha", Name: "Lugha", EducationLevel: shared.LevelUpperPrimary},
		"insha": {ID: "sub-insha", Name: "Insha", EducationLevel: shared.LevelUpperPrimary},
	}}
	markSet := &fakeMarks{byStudentSubject: map[string]*marks.Mark{
		"st1|sub-insha": {RawMark: 35, MaxRawMark: 40}, // 87.5%
	}}
	calc := NewCalculator(resolver, subjects, markSet, logger.Discard())

	score, err := calc.Compute(context.Background(), "st1", "Kiswahili", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 87.5, score.CombinedPct)
}

func TestCalculator_Compute_NoMarksReturnsNil(t *testing.T) {
	calc := englishCalculator(nil)

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.Nil(t, score)
}

func TestCalculator_Compute_NotCompositeReturnsNil(t *testing.T) {
	calc := NewCalculator(&fakeResolver{cfg: nil}, &fakeSubjects{}, &fakeMarks{}, logger.Discard())

	score, err := calc.Compute(context.Background(), "st1", "Mathematics", "t1", "mid", shared.LevelUpperPrimary)
	assert.NoError(t, err)
	assert.Nil(t, score)
}

func TestCalculator_Compute_SkipsComponentWithoutSubjectRow(t *testing.T) {
	resolver := &fakeResolver{cfg: &subject.CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []subject.Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Lugha", Weight: 0.4}, // no Subject row
		},
	}}
	subjects := &fakeSubjects{byName: map[string]*subject.Subject{
		"grammar": {ID: "sub-grammar", Name: "Grammar", EducationLevel: shared.LevelUpperPrimary},
	}}
	markSet := &fakeMarks{byStudentSubject: map[string]*marks.Mark{
		"st1|sub-grammar": {RawMark: 80, MaxRawMark: 100},
	}}
	calc := NewCalculator(resolver, subjects, markSet, logger.Discard())

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)

	// The unresolvable component is dropped entirely
	require.Len(t, score.Components, 1)
	assert.Equal(t, 80.0, score.CombinedPct)
}

func TestCalculator_Compute_ZeroWeightsYieldZeroCombined(t *testing.T) {
	resolver := &fakeResolver{cfg: &subject.CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []subject.Component{
			{Name: "Grammar", Weight: 0},
		},
	}}
	subjects := &fakeSubjects{byName: map[string]*subject.Subject{
		"grammar": {ID: "sub-grammar", Name: "Grammar", EducationLevel: shared.LevelUpperPrimary},
	}}
	markSet := &fakeMarks{byStudentSubject: map[string]*marks.Mark{
		"st1|sub-grammar": {RawMark: 80, MaxRawMark: 100},
	}}
	calc := NewCalculator(resolver, subjects, markSet, logger.Discard())

	score, err := calc.Compute(context.Background(), "st1", "English", "t1", "mid", shared.LevelUpperPrimary)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 0.0, score.CombinedPct)
}
