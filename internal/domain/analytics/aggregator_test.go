package analytics

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

func newRow(studentID, studentName, subjectID, subjectName string, raw, max float64) marks.Row {
	return marks.Row{
		Mark: marks.Mark{
			StudentID:  studentID,
			SubjectID:  subjectID,
			TermID:     "t1",
			RawMark:    raw,
			MaxRawMark: max,
		},
		StudentName: studentName,
		SubjectName: subjectName,
		GradeID:     "g4",
		GradeName:   "Grade 4",
		StreamID:    "g4w",
		StreamName:  "Grade 4 West",
	}
}

func TestAggregator_Aggregate_EmptyInput(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	result, err := agg.Aggregate(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Empty(t, result.StudentAverages)
	assert.Empty(t, result.SubjectAnalytics)
	assert.Empty(t, result.GradeBreakdown)
	assert.Empty(t, result.StreamBreakdown)
	assert.False(t, result.Summary.HasSufficientData)
	assert.Equal(t, 0, result.Summary.SkippedRows)
}

func TestAggregator_Aggregate_SingleStudent(t *testing.T) {
	agg := NewAggregator(logger.Discard())
	rows := []marks.Row{
		newRow("st1", "Amina", "sub1", "Mathematics", 80, 100),
		newRow("st1", "Amina", "sub2", "Science", 60, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{})
	require.NoError(t, err)

	require.Len(t, result.StudentAverages, 1)
	amina := result.StudentAverages[0]
	assert.Equal(t, "st1", amina.StudentID)
	assert.Equal(t, 70.0, amina.Average)
	assert.Equal(t, 2, amina.SampleSize)
	assert.Equal(t, 80.0, amina.SubjectScores["Mathematics"])
	assert.Equal(t, 60.0, amina.SubjectScores["Science"])

	assert.True(t, result.Summary.HasSufficientData)
	assert.Equal(t, 1, result.Summary.StudentsAnalyzed)
	assert.Equal(t, 2, result.Summary.SubjectsAnalyzed)
}

func TestAggregator_Aggregate_RecomputesPercentage(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	// Stored Percentage disagrees with the raw marks: raw marks win
	row := newRow("st1", "Amina", "sub1", "Mathematics", 40, 80)
	row.Percentage = 95

	result, err := agg.Aggregate(context.Background(), []marks.Row{row}, Options{})
	require.NoError(t, err)
	require.Len(t, result.StudentAverages, 1)
	assert.Equal(t, 50.0, result.StudentAverages[0].SubjectScores["Mathematics"])
}

func TestAggregator_Aggregate_SkipsOrphanedRows(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	orphan := newRow("st2", "Brian", "sub1", "Mathematics", 90, 100)
	orphan.StreamID = "" // dangling stream reference

	rows := []marks.Row{
		newRow("st1", "Amina", "sub1", "Mathematics", 80, 100),
		orphan,
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{})
	require.NoError(t, err)

	// The orphan contributes to nothing, not even subject totals
	require.Len(t, result.StudentAverages, 1)
	assert.Equal(t, "st1", result.StudentAverages[0].StudentID)
	require.Len(t, result.SubjectAnalytics, 1)
	assert.Equal(t, 1, result.SubjectAnalytics[0].StudentCount)
	assert.Equal(t, 1, result.Summary.SkippedRows)
}

func TestAggregator_Aggregate_SkipsMalformedMarks(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	negative := newRow("st1", "Amina", "sub1", "Mathematics", -5, 100)
	zeroMax := newRow("st1", "Amina", "sub2", "Science", 50, 0)

	result, err := agg.Aggregate(context.Background(), []marks.Row{negative, zeroMax}, Options{})
	require.NoError(t, err)

	assert.Empty(t, result.StudentAverages)
	assert.Equal(t, 2, result.Summary.SkippedRows)
	assert.False(t, result.Summary.HasSufficientData)
}

func TestAggregator_Aggregate_CompositeSubstitution(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	idx := NewComponentIndex([]*subject.Subject{
		{Name: "Grammar", EducationLevel: shared.LevelUpperPrimary, IsComponent: true, CompositeParent: "English", ComponentWeight: 0.6},
		{Name: "Composition", EducationLevel: shared.LevelUpperPrimary, IsComponent: true, CompositeParent: "English", ComponentWeight: 0.4},
	})

	rows := []marks.Row{
		newRow("st1", "Amina", "sub-g", "Grammar", 90, 100),
		newRow("st1", "Amina", "sub-c", "Composition", 60, 100),
		newRow("st1", "Amina", "sub-m", "Mathematics", 70, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{Components: idx})
	require.NoError(t, err)
	require.Len(t, result.StudentAverages, 1)

	amina := result.StudentAverages[0]

	// Components collapse into the composite parent: 90*0.6 + 60*0.4 = 78
	assert.Equal(t, 78.0, amina.SubjectScores["English"])
	assert.Equal(t, 70.0, amina.SubjectScores["Mathematics"])
	assert.NotContains(t, amina.SubjectScores, "Grammar")
	assert.NotContains(t, amina.SubjectScores, "Composition")

	// The student average treats the composite as one subject: (78+70)/2
	assert.Equal(t, 74.0, amina.Average)

	// Subject analytics report the parent, not the components
	names := make([]string, 0, len(result.SubjectAnalytics))
	for _, sa := range result.SubjectAnalytics {
		names = append(names, sa.SubjectName)
	}
	assert.ElementsMatch(t, []string{"English", "Mathematics"}, names)
}

func TestAggregator_Aggregate_PartialComposite(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	idx := NewComponentIndex([]*subject.Subject{
		{Name: "Grammar", EducationLevel: shared.LevelUpperPrimary, IsComponent: true, CompositeParent: "English", ComponentWeight: 0.6},
		{Name: "Composition", EducationLevel: shared.LevelUpperPrimary, IsComponent: true, CompositeParent: "English", ComponentWeight: 0.4},
	})

	// Only Grammar marked: normalization over present weight keeps 70%
	rows := []marks.Row{
		newRow("st1", "Amina", "sub-g", "Grammar", 70, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{Components: idx})
	require.NoError(t, err)
	require.Len(t, result.StudentAverages, 1)
	assert.Equal(t, 70.0, result.StudentAverages[0].SubjectScores["English"])
}

func TestAggregator_Aggregate_ViewByComponent(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	idx := NewComponentIndex([]*subject.Subject{
		{Name: "Grammar", EducationLevel: shared.LevelUpperPrimary, IsComponent: true, CompositeParent: "English", ComponentWeight: 0.6},
	})

	rows := []marks.Row{
		newRow("st1", "Amina", "sub-g", "Grammar", 90, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{Components: idx, ViewByComponent: true})
	require.NoError(t, err)
	require.Len(t, result.StudentAverages, 1)

	// No substitution: the component stands on its own
	assert.Equal(t, 90.0, result.StudentAverages[0].SubjectScores["Grammar"])
	assert.NotContains(t, result.StudentAverages[0].SubjectScores, "English")
}

func TestAggregator_Aggregate_GroupBreakdowns(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	east := newRow("st2", "Brian", "sub1", "Mathematics", 60, 100)
	east.StreamID = "g4e"
	east.StreamName = "Grade 4 East"

	rows := []marks.Row{
		newRow("st1", "Amina", "sub1", "Mathematics", 80, 100),
		east,
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{})
	require.NoError(t, err)

	require.Len(t, result.GradeBreakdown, 1)
	grade := result.GradeBreakdown[0]
	assert.Equal(t, "Grade 4", grade.GroupName)
	assert.Equal(t, 70.0, grade.AveragePercentage)
	assert.Equal(t, 2, grade.StudentCount)
	assert.Equal(t, 2, grade.TotalMarks)

	require.Len(t, result.StreamBreakdown, 2)
	// Sorted by group name
	assert.Equal(t, "Grade 4 East", result.StreamBreakdown[0].GroupName)
	assert.Equal(t, "Grade 4 West", result.StreamBreakdown[1].GroupName)
}

func TestAggregator_Aggregate_DeterministicOrder(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	rows := []marks.Row{
		newRow("st2", "Brian", "sub2", "Science", 60, 100),
		newRow("st1", "Amina", "sub1", "Mathematics", 80, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{})
	require.NoError(t, err)

	require.Len(t, result.StudentAverages, 2)
	assert.Equal(t, "Amina", result.StudentAverages[0].StudentName)
	assert.Equal(t, "Brian", result.StudentAverages[1].StudentName)

	require.Len(t, result.SubjectAnalytics, 2)
	assert.Equal(t, "Mathematics", result.SubjectAnalytics[0].SubjectName)
	assert.Equal(t, "Science", result.SubjectAnalytics[1].SubjectName)
}

func TestAggregator_Aggregate_PerformanceCategories(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	rows := []marks.Row{
		newRow("st1", "Amina", "sub1", "Mathematics", 85, 100),
		newRow("st1", "Amina", "sub2", "Science", 35, 100),
	}

	result, err := agg.Aggregate(context.Background(), rows, Options{})
	require.NoError(t, err)
	require.Len(t, result.SubjectAnalytics, 2)

	assert.Equal(t, "exceeding", result.SubjectAnalytics[0].PerformanceCategory)
	assert.Equal(t, "below", result.SubjectAnalytics[1].PerformanceCategory)
}

func TestAggregator_Aggregate_CancelledContext(t *testing.T) {
	agg := NewAggregator(logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []marks.Row{newRow("st1", "Amina", "sub1", "Mathematics", 80, 100)}

	_, err := agg.Aggregate(ctx, rows, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewComponentIndex(t *testing.T) {
	idx := NewComponentIndex([]*subject.Subject{
		{Name: "Grammar", IsComponent: true, CompositeParent: "English", ComponentWeight: 0.6},
		{Name: "Mathematics"},   // plain subject ignored
		{Name: "English", IsComposite: true}, // parent ignored
		nil,
		{Name: "Broken", IsComponent: true}, // missing parent ignored
	})

	require.Len(t, idx, 1)
	ref, ok := idx["grammar"]
	require.True(t, ok)
	assert.Equal(t, "English", ref.Parent)
	assert.Equal(t, 0.6, ref.Weight)
}
