package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARKS REPOSITORY
// Read-only access to the denormalized mark rows used by aggregation.
// ══════════════════════════════════════════════════════════════════════════════

// MarksRepository is the PostgreSQL implementation of marks.Repository.
type MarksRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewMarksRepository creates a new MarksRepository.
func NewMarksRepository(conn *Connection, log *logger.Logger) *MarksRepository {
	return &MarksRepository{
		conn: conn,
		log:  log.With(logger.String("component", "marks_repository")),
	}
}

// FetchRows returns denormalized mark rows matching the filter.
// LEFT JOINs keep rows whose student or grouping reference is broken;
// the aggregator counts those as skipped instead of losing them silently.
func (r *MarksRepository) FetchRows(ctx context.Context, filter marks.Filter) ([]marks.Row, error) {
	var (
		conditions []string
		args       []interface{}
	)

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.TermID != "" {
		addCondition("m.term_id = $%d", filter.TermID)
	}
	if filter.AssessmentTypeID != "" {
		addCondition("m.assessment_type_id = $%d", filter.AssessmentTypeID)
	}
	if filter.GradeID != "" {
		addCondition("g.id = $%d", filter.GradeID)
	}
	if filter.StreamID != "" {
		addCondition("str.id = $%d", filter.StreamID)
	}
	if filter.EducationLevel != "" {
		addCondition("sub.education_level = $%d", filter.EducationLevel.String())
	}
	if len(filter.SubjectIDs) > 0 {
		addCondition("m.subject_id = ANY($%d)", filter.SubjectIDs)
	}

	query := `
		SELECT
			m.student_id,
			m.subject_id,
			m.term_id,
			m.assessment_type_id,
			m.raw_mark,
			m.max_raw_mark,
			m.percentage,
			COALESCE(st.full_name, ''),
			COALESCE(sub.name, ''),
			COALESCE(sub.education_level, ''),
			COALESCE(g.id::text, ''),
			COALESCE(g.name, ''),
			COALESCE(str.id::text, ''),
			COALESCE(str.name, '')
		FROM marks m
		LEFT JOIN students st ON st.id = m.student_id
		LEFT JOIN streams str ON str.id = st.stream_id
		LEFT JOIN grades g ON g.id = str.grade_id
		LEFT JOIN subjects sub ON sub.id = m.subject_id
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY st.full_name, sub.name"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("marks", "FetchRows",
			shared.ErrPersistence, "failed to fetch mark rows", err)
	}
	defer rows.Close()

	var result []marks.Row
	for rows.Next() {
		var row marks.Row
		if err := rows.Scan(
			&row.StudentID,
			&row.SubjectID,
			&row.TermID,
			&row.AssessmentTypeID,
			&row.RawMark,
			&row.MaxRawMark,
			&row.Percentage,
			&row.StudentName,
			&row.SubjectName,
			&row.EducationLevel,
			&row.GradeID,
			&row.GradeName,
			&row.StreamID,
			&row.StreamName,
		); err != nil {
			return nil, shared.WrapError("marks", "FetchRows",
				shared.ErrPersistence, "failed to scan mark row", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("marks", "FetchRows",
			shared.ErrPersistence, "mark row iteration failed", err)
	}

	r.log.Debug("mark rows fetched",
		logger.Int("rows", len(result)),
		logger.TermID(filter.TermID))
	return result, nil
}

// FindMarksBySubjects returns the student's marks for a set of subjects
// within one term and assessment type, keyed by subject ID. Subjects
// without a mark are simply absent from the map.
func (r *MarksRepository) FindMarksBySubjects(ctx context.Context, studentID, termID, assessmentTypeID string, subjectIDs []string) (map[string]*marks.Mark, error) {
	found := make(map[string]*marks.Mark, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return found, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT student_id, subject_id, term_id, assessment_type_id,
		       raw_mark, max_raw_mark, percentage
		FROM marks
		WHERE student_id = $1 AND term_id = $2
		  AND assessment_type_id = $3 AND subject_id = ANY($4)
	`, studentID, termID, assessmentTypeID, subjectIDs)
	if err != nil {
		return nil, shared.WrapError("marks", "FindMarksBySubjects",
			shared.ErrPersistence, "failed to fetch marks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m marks.Mark
		if err := rows.Scan(
			&m.StudentID,
			&m.SubjectID,
			&m.TermID,
			&m.AssessmentTypeID,
			&m.RawMark,
			&m.MaxRawMark,
			&m.Percentage,
		); err != nil {
			return nil, shared.WrapError("marks", "FindMarksBySubjects",
				shared.ErrPersistence, "failed to scan mark", err)
		}
		mark := m
		found[m.SubjectID] = &mark
	}
	return found, rows.Err()
}
