package analytics

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING ENGINE
// Упорядочивает свёртки студентов в топ-N с детерминированным разрешением
// ничьих.
// ══════════════════════════════════════════════════════════════════════════════

// RankedStudent - позиция студента в рейтинге.
type RankedStudent struct {
	// Rank - позиция (начиная с 1).
	Rank int `json:"rank"`

	// StudentID - идентификатор студента.
	StudentID string `json:"student_id"`

	// StudentName - отображаемое имя.
	StudentName string `json:"student_name"`

	// Average - средний процент студента.
	Average float64 `json:"average"`

	// SampleSize - количество оценок, вошедших в среднее.
	SampleSize int `json:"sample_size"`
}

// RankByAverage возвращает топ-N студентов.
//
// Ключ сортировки: Average по убыванию; ничья 1: SampleSize по убыванию
// (среднее из большего числа оценок надёжнее); ничья 2: имя по возрастанию.
// Ранги назначаются последовательно 1..N БЕЗ разделяемых позиций: студенты
// с одинаковым ключом получают соседние номера в порядке разрешения ничьей.
// Отчёты печатают "позицию из N", и дублированная позиция ломает это
// отображение.
//
// limit <= 0 возвращает пустой срез, не ошибку. Вход не мутируется.
func RankByAverage(averages []StudentAverage, limit int) []RankedStudent {
	if limit <= 0 || len(averages) == 0 {
		return []RankedStudent{}
	}

	sorted := make([]StudentAverage, len(averages))
	copy(sorted, averages)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Average != sorted[j].Average {
			return sorted[i].Average > sorted[j].Average
		}
		if sorted[i].SampleSize != sorted[j].SampleSize {
			return sorted[i].SampleSize > sorted[j].SampleSize
		}
		if sorted[i].StudentName != sorted[j].StudentName {
			return sorted[i].StudentName < sorted[j].StudentName
		}
		// Имена могут совпадать: ID завершает детерминизм
		return sorted[i].StudentID < sorted[j].StudentID
	})

	if limit > len(sorted) {
		limit = len(sorted)
	}

	ranked := make([]RankedStudent, limit)
	for i := 0; i < limit; i++ {
		ranked[i] = RankedStudent{
			Rank:        i + 1,
			StudentID:   sorted[i].StudentID,
			StudentName: sorted[i].StudentName,
			Average:     sorted[i].Average,
			SampleSize:  sorted[i].SampleSize,
		}
	}

	return ranked
}
