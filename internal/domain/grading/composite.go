// Package grading содержит калькулятор составных оценок.
// Составная оценка - это взвешенный процент по компонентам предмета,
// устойчивый к частично выставленным оценкам: нормализация идёт по весам
// ПРИСУТСТВУЮЩИХ компонентов, чтобы промежуточный результат не занижался.
package grading

import (
	"context"
	"errors"

	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// ComponentScore - результат одного компонента в составной оценке.
// Компонент без оценки отображается как {Raw: 0, Max: 100, Pct: 0},
// но исключается из знаменателя взвешенной суммы.
type ComponentScore struct {
	// Name - название компонента.
	Name string `json:"name"`

	// Raw - сырой балл (0 для отсутствующей оценки).
	Raw float64 `json:"raw"`

	// Max - максимальный сырой балл (100 для отсутствующей оценки).
	Max float64 `json:"max"`

	// Pct - процент, пересчитанный из сырых баллов и округлённый до 2 знаков.
	Pct float64 `json:"pct"`

	// Weight - вес компонента в составной оценке.
	Weight float64 `json:"weight"`

	// HasMark - выставлена ли оценка по компоненту.
	HasMark bool `json:"has_mark"`
}

// CompositeScore - итог составной оценки студента.
type CompositeScore struct {
	// CompositeName - название составного предмета.
	CompositeName string `json:"composite_name"`

	// Components - результаты компонентов в порядке конфигурации.
	Components []ComponentScore `json:"components"`

	// CombinedPct - взвешенный процент, округлённый до 2 знаков.
	CombinedPct float64 `json:"combined_pct"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// ConfigResolver разрешает составные конфигурации.
// Реализуется subject.ConfigRegistry.
type ConfigResolver interface {
	GetConfig(ctx context.Context, subjectName string, level shared.EducationLevel) (*subject.CompositeConfig, error)
}

// Calculator вычисляет составные оценки.
type Calculator struct {
	configs  ConfigResolver
	subjects subject.Repository
	marks    marks.Repository
	log      *logger.Logger
}

// NewCalculator создаёт новый калькулятор составных оценок.
func NewCalculator(configs ConfigResolver, subjects subject.Repository, markRepo marks.Repository, log *logger.Logger) *Calculator {
	return &Calculator{
		configs:  configs,
		subjects: subjects,
		marks:    markRepo,
		log:      log,
	}
}

// Compute вычисляет составную оценку студента по предмету.
//
// Возвращает (nil, nil) в двух случаях, которые НЕ являются ошибками:
//   - предмет не сконфигурирован как составной (безопасное умолчание);
//   - ни один компонент не имеет оценки (составной без данных -
//     принципиально отличается от составного с нулём).
//
// Иначе: combined = Σ(pct_i·w_i) / Σ(w_i) только по компонентам с оценкой.
// Промежуточное суммирование без округления; итог округляется до 2 знаков.
func (c *Calculator) Compute(ctx context.Context, studentID, compositeName, termID, assessmentTypeID string, level shared.EducationLevel) (*CompositeScore, error) {
	cfg, err := c.configs.GetConfig(ctx, compositeName, level)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		// Не составной предмет
		return nil, nil
	}

	// Разрешаем компоненты в строки Subject, чтобы получить их ID.
	type resolved struct {
		comp subject.Component
		id   string
	}
	resolvedComps := make([]resolved, 0, len(cfg.Components))
	subjectIDs := make([]string, 0, len(cfg.Components))

	for _, comp := range cfg.Components {
		subj, err := c.subjects.FindByName(ctx, comp.Name, level)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				// Компонент сконфигурирован, но строки Subject нет -
				// предупреждение целостности, компонент пропускается.
				c.log.Warn("configured component has no subject row",
					logger.F("composite", compositeName),
					logger.F("component", comp.Name),
					logger.F("level", level.String()),
				)
				continue
			}
			return nil, shared.WrapError("grading", "Compute", shared.ErrPersistence,
				"failed to resolve component subject", err)
		}
		resolvedComps = append(resolvedComps, resolved{comp: comp, id: subj.ID})
		subjectIDs = append(subjectIDs, subj.ID)
	}

	if len(resolvedComps) == 0 {
		return nil, nil
	}

	byID, err := c.marks.FindMarksBySubjects(ctx, studentID, termID, assessmentTypeID, subjectIDs)
	if err != nil {
		return nil, shared.WrapError("grading", "Compute", shared.ErrPersistence,
			"failed to fetch component marks", err)
	}

	result := &CompositeScore{
		CompositeName: cfg.SubjectName,
		Components:    make([]ComponentScore, 0, len(resolvedComps)),
	}

	var weightedSum, presentWeight float64
	anyMark := false

	for _, rc := range resolvedComps {
		weight := rc.comp.Weight.Float64()
		mark, ok := byID[rc.id]
		if !ok || mark == nil {
			result.Components = append(result.Components, ComponentScore{
				Name:   rc.comp.Name,
				Raw:    0,
				Max:    100,
				Pct:    0,
				Weight: weight,
			})
			continue
		}

		pct := mark.ComputedPercentage()
		result.Components = append(result.Components, ComponentScore{
			Name:    rc.comp.Name,
			Raw:     mark.RawMark,
			Max:     mark.MaxRawMark,
			Pct:     pct.Round2(),
			Weight:  weight,
			HasMark: true,
		})

		weightedSum += pct.Float64() * weight
		presentWeight += weight
		anyMark = true
	}

	if !anyMark {
		// Ни одного компонента с оценкой: данных нет
		return nil, nil
	}

	if presentWeight > 0 {
		result.CombinedPct = shared.Percentage(weightedSum / presentWeight).Round2()
	}
	// Все присутствующие веса нулевые: combined остаётся 0

	return result, nil
}
