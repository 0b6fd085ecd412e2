package query

import (
	"context"

	"github.com/shulebook/shulebook/internal/domain/analytics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP PERFORMERS QUERY
// Топ-N студентов по среднему проценту внутри скоупа. Переиспользует
// кешированную комплексную аналитику: отдельного пересчёта нет.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopPerformersQuery содержит параметры запроса топ-N.
type GetTopPerformersQuery struct {
	// GradeID / StreamID / TermID / AssessmentTypeID / EducationLevel -
	// скоуп выборки, как в комплексной аналитике.
	GradeID          string
	StreamID         string
	TermID           string
	AssessmentTypeID string
	EducationLevel   string

	// Limit - размер топа. Limit <= 0 возвращает пустой список.
	Limit int
}

// GetTopPerformersResult содержит результат запроса топ-N.
type GetTopPerformersResult struct {
	// Performers - ранжированный список студентов.
	Performers []analytics.RankedStudent `json:"performers"`

	// TotalStudents - сколько студентов участвовало в ранжировании.
	TotalStudents int `json:"total_students"`

	// HasSufficientData - false, когда скоуп не дал ни одного студента.
	HasSufficientData bool `json:"has_sufficient_data"`
}

// ComprehensiveProvider поставляет комплексную аналитику.
// Реализуется GetComprehensiveAnalyticsHandler.
type ComprehensiveProvider interface {
	Handle(ctx context.Context, query GetComprehensiveAnalyticsQuery) (*ComprehensiveAnalyticsResult, error)
}

// GetTopPerformersHandler обрабатывает запросы топ-N.
type GetTopPerformersHandler struct {
	provider ComprehensiveProvider
}

// NewGetTopPerformersHandler создаёт новый обработчик.
func NewGetTopPerformersHandler(provider ComprehensiveProvider) *GetTopPerformersHandler {
	return &GetTopPerformersHandler{provider: provider}
}

// Handle выполняет запрос топ-N.
// Limit <= 0 - пустой список без ошибки: "покажи ноль лучших" - законный,
// хоть и бесполезный запрос.
func (h *GetTopPerformersHandler) Handle(ctx context.Context, query GetTopPerformersQuery) (*GetTopPerformersResult, error) {
	if query.Limit <= 0 {
		return &GetTopPerformersResult{Performers: []analytics.RankedStudent{}}, nil
	}

	full, err := h.provider.Handle(ctx, GetComprehensiveAnalyticsQuery{
		GradeID:          query.GradeID,
		StreamID:         query.StreamID,
		TermID:           query.TermID,
		AssessmentTypeID: query.AssessmentTypeID,
		EducationLevel:   query.EducationLevel,
		TopLimit:         query.Limit,
	})
	if err != nil {
		return nil, err
	}

	performers := analytics.RankByAverage(full.Analytics.StudentAverages, query.Limit)
	return &GetTopPerformersResult{
		Performers:        performers,
		TotalStudents:     full.Analytics.Summary.StudentsAnalyzed,
		HasSufficientData: full.Analytics.Summary.HasSufficientData,
	}, nil
}
