package analytics

import (
	"context"
	"sort"

	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENT INDEX
// ══════════════════════════════════════════════════════════════════════════════

// ComponentRef - ссылка компонента на составного родителя.
type ComponentRef struct {
	// Parent - название составного родителя.
	Parent string

	// Weight - вес компонента.
	Weight float64
}

// ComponentIndex сопоставляет нормализованное название компонента с его
// составным родителем. Строится из строк Subject уровня образования.
type ComponentIndex map[string]ComponentRef

// NewComponentIndex строит индекс компонентов из списка предметов.
// Учитываются только предметы с IsComponent и непустым родителем.
func NewComponentIndex(subjects []*subject.Subject) ComponentIndex {
	idx := make(ComponentIndex)
	for _, s := range subjects {
		if s == nil || !s.IsComponent || s.CompositeParent == "" {
			continue
		}
		idx[subject.NormalizeName(s.Name)] = ComponentRef{
			Parent: s.CompositeParent,
			Weight: s.ComponentWeight.Float64(),
		}
	}
	return idx
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Options управляют представлением агрегации.
type Options struct {
	// Components - индекс компонентов для подстановки составных оценок.
	// nil означает "компонентов нет, все предметы обычные".
	Components ComponentIndex

	// ViewByComponent - true для покомпонентного представления:
	// компоненты считаются самостоятельными предметами, подстановка
	// составных оценок не выполняется.
	ViewByComponent bool
}

// cancelCheckInterval - период проверки отмены контекста (в строках).
// Агрегация сама по себе не блокирует, но на больших выборках обязана
// прекращаться, как только вызывающая сторона отменила запрос.
const cancelCheckInterval = 512

// Aggregator сворачивает строки оценок в многоуровневую статистику.
// Строки уже выбраны репозиторием: единственная блокирующая работа
// (чтение БД) происходит до вызова Aggregate.
type Aggregator struct {
	log *logger.Logger
}

// NewAggregator создаёт новый агрегатор.
func NewAggregator(log *logger.Logger) *Aggregator {
	return &Aggregator{log: log}
}

// weightedAcc - аккумулятор взвешенной суммы составного предмета.
type weightedAcc struct {
	weightedSum   float64
	presentWeight float64
	markCount     int
}

// plainAcc - аккумулятор среднего по строкам.
type plainAcc struct {
	sum      float64
	count    int
	students map[string]bool
	name     string
}

// Aggregate сворачивает строки в Result.
//
// Политика устойчивости: строка с осиротевшей связью или некорректными
// баллами исключается из ВСЕХ агрегатов, учитывается в Summary.SkippedRows
// и логируется как предупреждение; агрегация никогда не прерывается из-за
// одной плохой строки. Единственные ошибки - отмена контекста.
//
// Пустой вход возвращает валидный пустой результат с
// HasSufficientData == false, а не ошибку.
func (a *Aggregator) Aggregate(ctx context.Context, rows []marks.Row, opts Options) (*Result, error) {
	// student -> display subject -> accumulated pct
	type studentState struct {
		name      string
		gradeID   string
		streamID  string
		plain     map[string]*weightedAcc // обычные предметы: среднее по строкам
		composite map[string]*weightedAcc // составные: взвешенная сумма
		markCount int
	}

	students := make(map[string]*studentState)
	grades := make(map[string]*plainAcc)
	streams := make(map[string]*plainAcc)
	skipped := 0

	for i := range rows {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				// Полупрочитанная агрегация никогда не выдаётся как полная
				return nil, err
			}
		}

		row := &rows[i]
		if row.IsOrphaned() {
			skipped++
			a.log.Warn("skipping orphaned mark row",
				logger.F("student_id", row.StudentID),
				logger.F("subject_id", row.SubjectID),
			)
			continue
		}
		if err := row.Validate(); err != nil {
			skipped++
			a.log.Warn("skipping malformed mark row",
				logger.F("student_id", row.StudentID),
				logger.F("subject_id", row.SubjectID),
				logger.F("reason", err.Error()),
			)
			continue
		}

		// Проценты всегда пересчитываются из сырых баллов
		pct := row.ComputedPercentage().Float64()

		st := students[row.StudentID]
		if st == nil {
			st = &studentState{
				name:      row.StudentName,
				gradeID:   row.GradeID,
				streamID:  row.StreamID,
				plain:     make(map[string]*weightedAcc),
				composite: make(map[string]*weightedAcc),
			}
			students[row.StudentID] = st
		}
		st.markCount++

		// Подстановка составных: компонент копится во взвешенную сумму
		// родителя, если не запрошено покомпонентное представление.
		ref, isComponent := opts.Components[subject.NormalizeName(row.SubjectName)]
		if isComponent && !opts.ViewByComponent {
			acc := st.composite[ref.Parent]
			if acc == nil {
				acc = &weightedAcc{}
				st.composite[ref.Parent] = acc
			}
			acc.weightedSum += pct * ref.Weight
			acc.presentWeight += ref.Weight
			acc.markCount++
		} else {
			acc := st.plain[row.SubjectName]
			if acc == nil {
				acc = &weightedAcc{}
				st.plain[row.SubjectName] = acc
			}
			// Несколько строк одного предмета (например, фильтр по
			// нескольким термам) усредняются поровну.
			acc.weightedSum += pct
			acc.presentWeight++
			acc.markCount++
		}

		accumulateGroup(grades, row.GradeID, row.GradeName, row.StudentID, pct)
		accumulateGroup(streams, row.StreamID, row.StreamName, row.StudentID, pct)
	}

	// Финальная проверка отмены перед сборкой результата
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		StudentAverages:  make([]StudentAverage, 0, len(students)),
		SubjectAnalytics: make([]SubjectAnalytics, 0),
		GradeBreakdown:   buildBreakdown(grades),
		StreamBreakdown:  buildBreakdown(streams),
	}

	// subject display name -> accumulator across students
	subjectAccs := make(map[string]*plainAcc)

	for id, st := range students {
		scores := make(map[string]float64, len(st.plain)+len(st.composite))
		var sum float64
		denominator := 0

		collect := func(name string, acc *weightedAcc) {
			if acc.presentWeight <= 0 {
				// Только нулевые веса: предмет отображается нулём,
				// но в среднее студента не входит
				scores[name] = 0
				return
			}
			avg := acc.weightedSum / acc.presentWeight
			scores[name] = shared.Percentage(avg).Round1()
			sum += avg
			denominator++

			sa := subjectAccs[name]
			if sa == nil {
				sa = &plainAcc{name: name, students: make(map[string]bool)}
				subjectAccs[name] = sa
			}
			sa.sum += avg
			sa.count += acc.markCount
			sa.students[id] = true
		}

		for name, acc := range st.plain {
			collect(name, acc)
		}
		for name, acc := range st.composite {
			collect(name, acc)
		}

		if denominator == 0 {
			continue
		}

		result.StudentAverages = append(result.StudentAverages, StudentAverage{
			StudentID:     id,
			StudentName:   st.name,
			SubjectScores: scores,
			Average:       shared.Percentage(sum / float64(denominator)).Round1(),
			SampleSize:    st.markCount,
			GradeID:       st.gradeID,
			StreamID:      st.streamID,
		})
	}

	for _, sa := range subjectAccs {
		n := len(sa.students)
		if n == 0 {
			continue
		}
		avg := sa.sum / float64(n)
		result.SubjectAnalytics = append(result.SubjectAnalytics, SubjectAnalytics{
			SubjectName:         sa.name,
			AveragePercentage:   shared.Percentage(avg).Round1(),
			StudentCount:        n,
			TotalMarks:          sa.count,
			PerformanceCategory: shared.CategorizeAverage(avg).String(),
		})
	}

	// Детерминированный порядок для кеширования и отчётов
	sort.Slice(result.StudentAverages, func(i, j int) bool {
		if result.StudentAverages[i].StudentName != result.StudentAverages[j].StudentName {
			return result.StudentAverages[i].StudentName < result.StudentAverages[j].StudentName
		}
		return result.StudentAverages[i].StudentID < result.StudentAverages[j].StudentID
	})
	sort.Slice(result.SubjectAnalytics, func(i, j int) bool {
		return result.SubjectAnalytics[i].SubjectName < result.SubjectAnalytics[j].SubjectName
	})

	result.Summary = Summary{
		StudentsAnalyzed:  len(result.StudentAverages),
		SubjectsAnalyzed:  len(result.SubjectAnalytics),
		SkippedRows:       skipped,
		HasSufficientData: len(result.StudentAverages) > 0,
	}

	return result, nil
}

// accumulateGroup добавляет строку в аккумулятор класса/потока.
func accumulateGroup(groups map[string]*plainAcc, id, name, studentID string, pct float64) {
	acc := groups[id]
	if acc == nil {
		acc = &plainAcc{name: name, students: make(map[string]bool)}
		groups[id] = acc
	}
	acc.sum += pct
	acc.count++
	acc.students[studentID] = true
}

// buildBreakdown собирает отсортированные свёртки групп.
// Группы без строк (n = 0) опускаются - деления на ноль не бывает.
func buildBreakdown(groups map[string]*plainAcc) []GroupBreakdown {
	out := make([]GroupBreakdown, 0, len(groups))
	for id, acc := range groups {
		if acc.count == 0 {
			continue
		}
		out = append(out, GroupBreakdown{
			GroupID:           id,
			GroupName:         acc.name,
			AveragePercentage: shared.Percentage(acc.sum / float64(acc.count)).Round1(),
			StudentCount:      len(acc.students),
			TotalMarks:        acc.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupName != out[j].GroupName {
			return out[i].GroupName < out[j].GroupName
		}
		return out[i].GroupID < out[j].GroupID
	})
	return out
}
