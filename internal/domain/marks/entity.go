// Package marks содержит доменную модель оценок.
// Оценки создаются и изменяются внешним контуром загрузки/редактирования;
// для аналитического ядра они доступны только на чтение.
package marks

import (
	"math"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Mark представляет одну оценку: сырой балл студента по предмету
// (обычному или компоненту, никогда по составному родителю) за
// конкретный терм и тип аттестации.
type Mark struct {
	// StudentID - идентификатор студента.
	StudentID string

	// SubjectID - идентификатор предмета или компонента.
	SubjectID string

	// TermID - идентификатор терма.
	TermID string

	// AssessmentTypeID - идентификатор типа аттестации (mid-term, end-term).
	AssessmentTypeID string

	// RawMark - сырой балл.
	RawMark float64

	// MaxRawMark - максимально возможный сырой балл.
	MaxRawMark float64

	// Percentage - производный процент, сохранённый при записи.
	// При чтении НЕ является авторитетным: агрегатор всегда пересчитывает
	// через ComputedPercentage.
	Percentage float64
}

// ComputedPercentage пересчитывает процент из сырых баллов.
// Сохранённое поле Percentage никогда не используется напрямую.
func (m *Mark) ComputedPercentage() shared.Percentage {
	if m.MaxRawMark <= 0 {
		return 0
	}
	return shared.Percentage(m.RawMark / m.MaxRawMark * 100)
}

// Validate проверяет, что оценка пригодна для агрегации.
// Отрицательные и NaN баллы отклоняются контуром записи; здесь они
// трактуются как нарушение целостности, а не молча приводятся к нулю.
func (m *Mark) Validate() error {
	if math.IsNaN(m.RawMark) || math.IsInf(m.RawMark, 0) || m.RawMark < 0 {
		return shared.ErrInvalidRawMark
	}
	if math.IsNaN(m.MaxRawMark) || math.IsInf(m.MaxRawMark, 0) || m.MaxRawMark <= 0 {
		return shared.ErrInvalidMaxMark
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MARK ROW (Denormalized Read Model)
// ══════════════════════════════════════════════════════════════════════════════

// Row - денормализованная строка оценки: Mark, соединённый со Student,
// Stream, Grade и Subject. Поставляется репозиторием для агрегации.
type Row struct {
	Mark

	// StudentName - отображаемое имя студента.
	StudentName string

	// SubjectName - название предмета.
	SubjectName string

	// EducationLevel - уровень образования предмета.
	EducationLevel shared.EducationLevel

	// GradeID / GradeName - класс студента.
	GradeID   string
	GradeName string

	// StreamID / StreamName - поток студента внутри класса.
	StreamID   string
	StreamName string
}

// IsOrphaned возвращает true, если у строки отсутствует обязательная
// связь (студент, предмет или группировка). Такие строки исключаются
// из всех агрегатов и учитываются как предупреждение целостности.
func (r *Row) IsOrphaned() bool {
	return strings.TrimSpace(r.StudentID) == "" ||
		strings.TrimSpace(r.SubjectID) == "" ||
		strings.TrimSpace(r.SubjectName) == "" ||
		strings.TrimSpace(r.GradeID) == "" ||
		strings.TrimSpace(r.StreamID) == ""
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION FILTER
// ══════════════════════════════════════════════════════════════════════════════

// Filter ограничивает выборку строк оценок. Пустое поле означает
// отсутствие ограничения по этому измерению.
type Filter struct {
	// GradeID - фильтр по классу.
	GradeID string

	// StreamID - фильтр по потоку.
	StreamID string

	// TermID - фильтр по терму.
	TermID string

	// AssessmentTypeID - фильтр по типу аттестации.
	AssessmentTypeID string

	// SubjectIDs - фильтр по набору предметов (пустой срез = все).
	SubjectIDs []string

	// EducationLevel - фильтр по уровню образования.
	EducationLevel shared.EducationLevel
}

// IsZero возвращает true, если фильтр не ограничивает выборку.
func (f Filter) IsZero() bool {
	return f.GradeID == "" && f.StreamID == "" && f.TermID == "" &&
		f.AssessmentTypeID == "" && len(f.SubjectIDs) == 0 &&
		f.EducationLevel == ""
}
