// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shulebook/shulebook/internal/domain/analytics"
	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/internal/infrastructure/cache"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPREHENSIVE ANALYTICS QUERY
// Полный аналитический фасад: свёртки по студентам, предметам, классам и
// потокам плюс топ-N, за одним стабильным ключом кеша.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsTTL - время жизни кешированного результата аналитики.
const AnalyticsTTL = 30 * time.Minute

// DefaultTopLimit - размер топ-N по умолчанию.
const DefaultTopLimit = 10

// AnalyticsCache - двухуровневый кеш аналитики.
// Реализуется cache.Service; в тестах подменяется фейком.
type AnalyticsCache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error
}

// GetComprehensiveAnalyticsQuery содержит параметры запроса аналитики.
// Пустое поле означает отсутствие ограничения по этому измерению.
type GetComprehensiveAnalyticsQuery struct {
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
	EducationLevel string

	// ViewByComponent - покомпонентное представление: компоненты
	// показываются как самостоятельные предметы без подстановки
	// составных оценок.
	ViewByComponent bool

	// TopLimit - размер топ-N (по умолчанию 10, максимум 100).
	TopLimit int

	// SkipCache - принудительный пересчёт мимо кеша.
	SkipCache bool
}

// Validate проверяет корректность параметров запроса.
// Запрос без единого ограничения отклоняется: полная выгрузка школы -
// не аналитический запрос.
func (q *GetComprehensiveAnalyticsQuery) Validate() error {
	if q.Filter().IsZero() {
		return shared.ErrEmptyFilter
	}
	if q.EducationLevel != "" {
		if _, err := shared.NewEducationLevel(q.EducationLevel); err != nil {
			return err
		}
	}
	if q.TopLimit < 0 {
		return shared.NewDomainError("query", "GetComprehensiveAnalytics",
			shared.ErrInvalidInput, "top limit cannot be negative")
	}
	if q.TopLimit == 0 {
		q.TopLimit = DefaultTopLimit
	}
	if q.TopLimit > 100 {
		q.TopLimit = 100
	}
	return nil
}

// Filter переводит запрос в фильтр репозитория оценок.
func (q *GetComprehensiveAnalyticsQuery) Filter() marks.Filter {
	return marks.Filter{
		GradeID:          q.GradeID,
		StreamID:         q.StreamID,
		TermID:           q.TermID,
		AssessmentTypeID: q.AssessmentTypeID,
		SubjectIDs:       q.SubjectIDs,
		EducationLevel:   shared.EducationLevel(q.EducationLevel),
	}
}

// ComprehensiveAnalyticsResult содержит результат запроса аналитики.
type ComprehensiveAnalyticsResult struct {
	// Analytics - многоуровневая свёртка оценок.
	Analytics analytics.Result `json:"analytics"`

	// TopPerformers - топ-N студентов по среднему проценту.
	// Ранжируется на каждый запрос из кешированной свёртки: размер топа
	// не фиксируется в кеше.
	TopPerformers []analytics.RankedStudent `json:"top_performers"`

	// GeneratedAt - время вычисления результата (не время ответа:
	// кешированный результат сохраняет исходную отметку).
	GeneratedAt time.Time `json:"generated_at"`
}

// cachedAnalytics - кешируемая часть результата. Не включает топ-N:
// запросы с разными лимитами делят один ключ.
type cachedAnalytics struct {
	Analytics   analytics.Result `json:"analytics"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// GetComprehensiveAnalyticsHandler обрабатывает запросы аналитики.
type GetComprehensiveAnalyticsHandler struct {
	marksRepo    marks.Repository
	subjectsRepo subject.Repository
	aggregator   *analytics.Aggregator
	cache        AnalyticsCache
	log          *logger.Logger
}

// NewGetComprehensiveAnalyticsHandler создаёт новый обработчик.
func NewGetComprehensiveAnalyticsHandler(
	marksRepo marks.Repository,
	subjectsRepo subject.Repository,
	aggregator *analytics.Aggregator,
	analyticsCache AnalyticsCache,
	log *logger.Logger,
) *GetComprehensiveAnalyticsHandler {
	return &GetComprehensiveAnalyticsHandler{
		marksRepo:    marksRepo,
		subjectsRepo: subjectsRepo,
		aggregator:   aggregator,
		cache:        analyticsCache,
		log:          log,
	}
}

// CacheKey строит стабильный ключ кеша запроса. Пространство имён включает
// терм, чтобы инвалидация по изменению оценок затрагивала только его ключи.
// TopLimit и SkipCache в ключ не входят: кешируется свёртка, не зависящая
// от лимита, а топ-N ранжируется на каждый запрос.
func (q *GetComprehensiveAnalyticsQuery) CacheKey() string {
	namespace := "analytics"
	if q.TermID != "" {
		namespace = "analytics:term:" + q.TermID
	}
	viewMode := "composite"
	if q.ViewByComponent {
		viewMode = "component"
	}
	subjects := make([]string, len(q.SubjectIDs))
	copy(subjects, q.SubjectIDs)
	sort.Strings(subjects)
	return cache.BuildKey(namespace, map[string]string{
		"grade":      q.GradeID,
		"stream":     q.StreamID,
		"assessment": q.AssessmentTypeID,
		"subjects":   strings.Join(subjects, ","),
		"level":      q.EducationLevel,
		"view":       viewMode,
	})
}

// Handle выполняет запрос аналитики.
//
// Пустая выборка (фильтр ничего не нашёл) - валидный результат с
// HasSufficientData == false, не ошибка: "нет данных" и "сломалось" -
// разные исходы.
func (h *GetComprehensiveAnalyticsHandler) Handle(ctx context.Context, query GetComprehensiveAnalyticsQuery) (*ComprehensiveAnalyticsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var cached cachedAnalytics
	if query.SkipCache || h.cache == nil {
		computed, err := h.compute(ctx, query)
		if err != nil {
			return nil, err
		}
		cached = *computed
	} else {
		err := h.cache.GetOrCompute(ctx, query.CacheKey(), AnalyticsTTL, &cached,
			func(ctx context.Context) (interface{}, error) {
				computed, err := h.compute(ctx, query)
				if err != nil {
					return nil, err
				}
				return computed, nil
			})
		if err != nil {
			return nil, err
		}
	}

	return &ComprehensiveAnalyticsResult{
		Analytics:     cached.Analytics,
		TopPerformers: analytics.RankByAverage(cached.Analytics.StudentAverages, query.TopLimit),
		GeneratedAt:   cached.GeneratedAt,
	}, nil
}

// WarmScope вычисляет и кеширует аналитику одного скоупа.
// Вызывается задачей прогрева кеша.
func (h *GetComprehensiveAnalyticsHandler) WarmScope(ctx context.Context, filter marks.Filter) error {
	query := GetComprehensiveAnalyticsQuery{
		GradeID:          filter.GradeID,
		StreamID:         filter.StreamID,
		TermID:           filter.TermID,
		AssessmentTypeID: filter.AssessmentTypeID,
		SubjectIDs:       filter.SubjectIDs,
		EducationLevel:   filter.EducationLevel.String(),
	}
	_, err := h.Handle(ctx, query)
	return err
}

// compute выполняет полный пересчёт: выборка строк, индекс компонентов
// и агрегация. Ранжирование остаётся вне кешируемой части.
func (h *GetComprehensiveAnalyticsHandler) compute(ctx context.Context, query GetComprehensiveAnalyticsQuery) (*cachedAnalytics, error) {
	started := time.Now()

	rows, err := h.marksRepo.FetchRows(ctx, query.Filter())
	if err != nil {
		return nil, shared.WrapError("query", "GetComprehensiveAnalytics",
			shared.ErrPersistence, "failed to fetch mark rows", err)
	}

	componentIndex, err := h.buildComponentIndex(ctx, query)
	if err != nil {
		return nil, err
	}

	aggregated, err := h.aggregator.Aggregate(ctx, rows, analytics.Options{
		Components:      componentIndex,
		ViewByComponent: query.ViewByComponent,
	})
	if err != nil {
		return nil, err
	}

	result := &cachedAnalytics{
		Analytics:   *aggregated,
		GeneratedAt: time.Now().UTC(),
	}

	h.log.Info("analytics computed",
		logger.TermID(query.TermID),
		logger.GradeID(query.GradeID),
		logger.Int("rows", len(rows)),
		logger.Int("students", result.Analytics.Summary.StudentsAnalyzed),
		logger.Int("skipped_rows", result.Analytics.Summary.SkippedRows),
		logger.Latency(time.Since(started)),
	)
	return result, nil
}

// buildComponentIndex собирает индекс компонент-родитель по уровням,
// затронутым запросом. Без фильтра по уровню берутся все уровни: строки
// выборки могут относиться к любому из них.
func (h *GetComprehensiveAnalyticsHandler) buildComponentIndex(ctx context.Context, query GetComprehensiveAnalyticsQuery) (analytics.ComponentIndex, error) {
	levels := []shared.EducationLevel{
		shared.LevelLowerPrimary,
		shared.LevelUpperPrimary,
		shared.LevelJuniorSecondary,
		shared.LevelSeniorSecondary,
	}
	if query.EducationLevel != "" {
		levels = []shared.EducationLevel{shared.EducationLevel(query.EducationLevel)}
	}

	var all []*subject.Subject
	for _, level := range levels {
		subjects, err := h.subjectsRepo.ListByLevel(ctx, level)
		if err != nil {
			return nil, shared.WrapError("query", "GetComprehensiveAnalytics",
				shared.ErrPersistence, "failed to list subjects", err)
		}
		all = append(all, subjects...)
	}
	return analytics.NewComponentIndex(all), nil
}
