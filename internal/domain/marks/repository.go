package marks

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация живёт в internal/infrastructure/persistence/postgres.
// Это единственная блокирующая точка агрегации: запрос обязан уважать
// отмену контекста, чтобы не накапливать полупрочитанный результат.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции чтения оценок.
type Repository interface {
	// FetchRows возвращает денормализованные строки оценок по фильтру.
	// Пустой результат - нормальный исход, не ошибка.
	FetchRows(ctx context.Context, filter Filter) ([]Row, error)

	// FindMarksBySubjects возвращает оценки студента по набору предметов
	// за один терм и тип аттестации, индексированные по SubjectID.
	// Предметы без оценки в карте отсутствуют.
	FindMarksBySubjects(ctx context.Context, studentID, termID, assessmentTypeID string, subjectIDs []string) (map[string]*Mark, error)
}
