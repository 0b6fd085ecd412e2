package query

import (
	"context"
	"strings"

	"github.com/shulebook/shulebook/internal/domain/grading"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPOSITE DISPLAY QUERY
// Разбивка составной оценки студента по компонентам для табеля:
// каждый компонент с сырым баллом и процентом, плюс взвешенный итог.
// ══════════════════════════════════════════════════════════════════════════════

// GetCompositeDisplayQuery содержит параметры запроса разбивки.
type GetCompositeDisplayQuery struct {
	// StudentID - идентификатор студента.
	StudentID string

	// SubjectName - название составного предмета.
	SubjectName string

	// TermID - идентификатор терма.
	TermID string

	// AssessmentTypeID - идентификатор типа аттестации.
	AssessmentTypeID string

	// EducationLevel - уровень образования студента.
	EducationLevel string
}

// Validate проверяет корректность параметров запроса.
func (q *GetCompositeDisplayQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return shared.NewDomainError("query", "GetCompositeDisplay",
			shared.ErrEmptyValue, "student ID is required")
	}
	if strings.TrimSpace(q.SubjectName) == "" {
		return shared.ErrEmptySubjectName
	}
	if _, err := shared.NewEducationLevel(q.EducationLevel); err != nil {
		return err
	}
	return nil
}

// CompositeDisplayResult содержит разбивку составной оценки.
type CompositeDisplayResult struct {
	// SubjectName - название предмета, как запрошено.
	SubjectName string `json:"subject_name"`

	// IsComposite - сконфигурирован ли предмет как составной.
	// false - безопасное умолчание: предмет показывается как обычный.
	IsComposite bool `json:"is_composite"`

	// HasMarks - есть ли хотя бы одна оценка по компонентам.
	HasMarks bool `json:"has_marks"`

	// Score - разбивка по компонентам и взвешенный итог.
	// nil когда IsComposite == false или HasMarks == false.
	Score *grading.CompositeScore `json:"score,omitempty"`
}

// CompositeCalculator вычисляет составные оценки.
// Реализуется grading.Calculator; в тестах подменяется фейком.
type CompositeCalculator interface {
	Compute(ctx context.Context, studentID, compositeName, termID, assessmentTypeID string, level shared.EducationLevel) (*grading.CompositeScore, error)
}

// ConfigChecker сообщает, сконфигурирован ли предмет как составной.
// Реализуется subject.ConfigRegistry.
type ConfigChecker interface {
	IsComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error)
}

// SubjectLister перечисляет предметы уровня образования.
// Реализуется subject.Repository.
type SubjectLister interface {
	ListByLevel(ctx context.Context, level shared.EducationLevel) ([]*subject.Subject, error)
}

// GetCompositeDisplayHandler обрабатывает запросы разбивки составных оценок.
type GetCompositeDisplayHandler struct {
	calculator CompositeCalculator
	configs    ConfigChecker
	subjects   SubjectLister
}

// NewGetCompositeDisplayHandler создаёт новый обработчик.
func NewGetCompositeDisplayHandler(calculator CompositeCalculator, configs ConfigChecker, subjects SubjectLister) *GetCompositeDisplayHandler {
	return &GetCompositeDisplayHandler{
		calculator: calculator,
		configs:    configs,
		subjects:   subjects,
	}
}

// Handle выполняет запрос разбивки.
//
// Калькулятор возвращает nil без ошибки в двух случаях: предмет не
// составной, либо ни один компонент не имеет оценки. Различаем их через
// реестр конфигураций, чтобы табель мог показать "составной, но без
// оценок" вместо пустой строки.
func (h *GetCompositeDisplayHandler) Handle(ctx context.Context, query GetCompositeDisplayQuery) (*CompositeDisplayResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	level := shared.EducationLevel(query.EducationLevel)

	score, err := h.calculator.Compute(ctx,
		query.StudentID, query.SubjectName, query.TermID, query.AssessmentTypeID, level)
	if err != nil {
		return nil, err
	}

	result := &CompositeDisplayResult{
		SubjectName: query.SubjectName,
	}

	if score != nil {
		result.IsComposite = true
		result.HasMarks = true
		result.Score = score
		return result, nil
	}

	isComposite, err := h.configs.IsComposite(ctx, query.SubjectName, level)
	if err != nil {
		return nil, err
	}
	result.IsComposite = isComposite
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT COMPOSITES QUERY
// Разбивки ВСЕХ составных предметов уровня для одного студента: табель
// перечисляет составные оценки, не зная конфигурации заранее.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentCompositesQuery содержит параметры запроса всех разбивок.
type GetStudentCompositesQuery struct {
	// StudentID - идентификатор студента.
	StudentID string

	// TermID - идентификатор терма.
	TermID string

	// AssessmentTypeID - идентификатор типа аттестации.
	AssessmentTypeID string

	// EducationLevel - уровень образования студента.
	EducationLevel string
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudentCompositesQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return shared.NewDomainError("query", "GetStudentComposites",
			shared.ErrEmptyValue, "student ID is required")
	}
	if _, err := shared.NewEducationLevel(q.EducationLevel); err != nil {
		return err
	}
	return nil
}

// HandleAll возвращает разбивки всех составных предметов уровня,
// индексированные по названию предмета. Предметы без единой оценки по
// компонентам присутствуют в карте с HasMarks == false: табель различает
// "не оценён" и "не составной".
func (h *GetCompositeDisplayHandler) HandleAll(ctx context.Context, query GetStudentCompositesQuery) (map[string]*CompositeDisplayResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	level := shared.EducationLevel(query.EducationLevel)

	subjects, err := h.subjects.ListByLevel(ctx, level)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentComposites",
			shared.ErrPersistence, "failed to list subjects", err)
	}

	results := make(map[string]*CompositeDisplayResult)
	for _, s := range subjects {
		if !s.IsComposite {
			continue
		}

		score, err := h.calculator.Compute(ctx,
			query.StudentID, s.Name, query.TermID, query.AssessmentTypeID, level)
		if err != nil {
			return nil, err
		}

		result := &CompositeDisplayResult{
			SubjectName: s.Name,
			IsComposite: true,
		}
		if score != nil {
			result.HasMarks = true
			result.Score = score
		}
		results[s.Name] = result
	}
	return results, nil
}
