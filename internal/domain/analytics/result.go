// Package analytics содержит свёртку оценок в многоуровневую статистику:
// средние по студентам, предметам, классам и потокам, плюс ранжирование.
// Результаты - неизменяемые объекты-значения: кеш хранит их целиком и
// никогда не мутирует на месте.
package analytics

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION RESULT TYPES
// Не персистентные: живут в кеше и в ответах фасада.
// ══════════════════════════════════════════════════════════════════════════════

// StudentAverage - свёртка по одному студенту.
type StudentAverage struct {
	// StudentID - идентификатор студента.
	StudentID string `json:"student_id"`

	// StudentName - отображаемое имя.
	StudentName string `json:"student_name"`

	// SubjectScores - проценты по предметам (составные уже подставлены),
	// округлённые до 1 знака.
	SubjectScores map[string]float64 `json:"subject_scores"`

	// Average - среднее арифметическое по предметам С оценками,
	// округлённое до 1 знака. Отсутствующие предметы не считаются нулём.
	Average float64 `json:"average"`

	// SampleSize - количество строк оценок, вошедших в среднее.
	SampleSize int `json:"sample_size"`

	// GradeID / StreamID - группировка студента.
	GradeID  string `json:"grade_id"`
	StreamID string `json:"stream_id"`
}

// SubjectAnalytics - свёртка по одному предмету.
type SubjectAnalytics struct {
	// SubjectName - название предмета (или составного родителя).
	SubjectName string `json:"subject_name"`

	// AveragePercentage - средний процент по студентам с оценкой,
	// округлённый до 1 знака.
	AveragePercentage float64 `json:"average_percentage"`

	// StudentCount - количество уникальных студентов с оценкой.
	StudentCount int `json:"student_count"`

	// TotalMarks - количество строк оценок.
	TotalMarks int `json:"total_marks"`

	// PerformanceCategory - качественная полоса среднего.
	PerformanceCategory string `json:"performance_category"`
}

// GroupBreakdown - свёртка по классу или потоку.
type GroupBreakdown struct {
	// GroupID - идентификатор класса/потока.
	GroupID string `json:"group_id"`

	// GroupName - название класса/потока.
	GroupName string `json:"group_name"`

	// AveragePercentage - средний процент, округлённый до 1 знака.
	AveragePercentage float64 `json:"average_percentage"`

	// StudentCount - количество уникальных студентов.
	StudentCount int `json:"student_count"`

	// TotalMarks - количество строк оценок.
	TotalMarks int `json:"total_marks"`
}

// Summary - метаданные результата агрегации.
type Summary struct {
	// StudentsAnalyzed - количество студентов в результате.
	StudentsAnalyzed int `json:"students_analyzed"`

	// SubjectsAnalyzed - количество предметов в результате.
	SubjectsAnalyzed int `json:"subjects_analyzed"`

	// SkippedRows - количество строк, исключённых из-за нарушений
	// целостности (осиротевшие связи, некорректные баллы).
	SkippedRows int `json:"skipped_rows"`

	// HasSufficientData - false для пустого (но валидного) результата.
	HasSufficientData bool `json:"has_sufficient_data"`
}

// Result - полный результат агрегации.
type Result struct {
	// StudentAverages отсортированы по имени студента для детерминизма.
	StudentAverages []StudentAverage `json:"student_averages"`

	// SubjectAnalytics отсортированы по названию предмета.
	SubjectAnalytics []SubjectAnalytics `json:"subject_analytics"`

	// GradeBreakdown / StreamBreakdown отсортированы по названию группы.
	GradeBreakdown  []GroupBreakdown `json:"grade_breakdown"`
	StreamBreakdown []GroupBreakdown `json:"stream_breakdown"`

	// Summary - метаданные результата.
	Summary Summary `json:"summary"`
}
