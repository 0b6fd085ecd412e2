// Package subject содержит доменную модель предметов и составных конфигураций.
// Составной предмет (composite) - это логический предмет, оцениваемый через
// независимо выставляемые компоненты (например, English = Grammar + Composition).
// Модель стандартизирована на "компонент как предмет": компонент - это
// самостоятельная строка Subject со ссылкой CompositeParent и весом.
package subject

import (
	"sort"
	"strings"
	"time"

	"github.com/shulebook/shulebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Subject представляет предмет учебного плана.
// Предмет может быть обычным, составным родителем (логическая группировка,
// по которой оценки не выставляются напрямую) или компонентом.
type Subject struct {
	// ID - уникальный идентификатор предмета.
	ID string

	// Name - название предмета (например, "English", "Grammar").
	Name string

	// EducationLevel - уровень образования, к которому относится предмет.
	EducationLevel shared.EducationLevel

	// IsComposite - является ли предмет составным родителем.
	IsComposite bool

	// IsComponent - является ли предмет компонентом составного.
	IsComponent bool

	// CompositeParent - название составного родителя (пусто для не-компонентов).
	CompositeParent string

	// ComponentWeight - вес компонента в составной оценке (в [0, 1]).
	// Имеет смысл только когда IsComponent == true.
	ComponentWeight shared.Weight
}

// IsPlain возвращает true, если предмет обычный (ни составной, ни компонент).
func (s *Subject) IsPlain() bool {
	return !s.IsComposite && !s.IsComponent
}

// Validate проверяет инвариант предмета: компонент всегда имеет непустого
// родителя и корректный вес; составной родитель не может быть компонентом.
func (s *Subject) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return shared.ErrEmptySubjectName
	}
	if !s.EducationLevel.IsValid() {
		return shared.ErrInvalidLevel
	}
	if s.IsComposite && s.IsComponent {
		return shared.NewDomainError("subject", "Validate", shared.ErrInvalidState,
			"subject cannot be both composite parent and component")
	}
	if s.IsComponent {
		if strings.TrimSpace(s.CompositeParent) == "" {
			return shared.NewDomainError("subject", "Validate", shared.ErrEmptyValue,
				"component must reference a composite parent")
		}
		if !s.ComponentWeight.IsValid() {
			return shared.ErrInvalidWeight
		}
	}
	return nil
}

// NormalizeName приводит название предмета к канонической форме для
// регистронезависимого сопоставления.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Component описывает один компонент составного предмета.
type Component struct {
	// Name - название компонента (самостоятельного предмета).
	Name string

	// Weight - вес компонента в итоговой оценке.
	Weight shared.Weight
}

// CompositeConfig описывает разбиение составного предмета на компоненты
// для конкретного уровня образования.
type CompositeConfig struct {
	// ID - уникальный идентификатор конфигурации.
	ID string

	// SubjectName - название составного родителя.
	SubjectName string

	// EducationLevel - уровень образования, к которому применяется конфигурация.
	EducationLevel shared.EducationLevel

	// IsComposite - включена ли составная оценка. Выключение через
	// ToggleComposite сохраняет веса компонентов.
	IsComposite bool

	// Components - упорядоченный список компонентов с весами.
	Components []Component

	// UpdatedAt - время последнего изменения конфигурации.
	UpdatedAt time.Time
}

// Validate проверяет корректность конфигурации: непустое имя, валидный
// уровень, хотя бы один компонент, без дубликатов, веса в [0, 1].
func (c *CompositeConfig) Validate() error {
	if strings.TrimSpace(c.SubjectName) == "" {
		return shared.ErrEmptySubjectName
	}
	if !c.EducationLevel.IsValid() {
		return shared.ErrInvalidLevel
	}
	if len(c.Components) == 0 {
		return shared.ErrNoComponents
	}

	seen := make(map[string]bool, len(c.Components))
	for _, comp := range c.Components {
		name := NormalizeName(comp.Name)
		if name == "" {
			return shared.ErrEmptySubjectName
		}
		if seen[name] {
			return shared.ErrDuplicateComponent
		}
		seen[name] = true

		if !comp.Weight.IsValid() {
			return shared.ErrInvalidWeight
		}
	}
	return nil
}

// WeightSum возвращает сумму весов всех компонентов.
// Сумма ДОЛЖНА быть равна 1.0, но на записи это не форсируется:
// калькулятор нормализует по весам присутствующих компонентов.
func (c *CompositeConfig) WeightSum() float64 {
	var sum float64
	for _, comp := range c.Components {
		sum += comp.Weight.Float64()
	}
	return sum
}

// ComponentNames возвращает отсортированный список названий компонентов.
func (c *CompositeConfig) ComponentNames() []string {
	names := make([]string, len(c.Components))
	for i, comp := range c.Components {
		names[i] = comp.Name
	}
	sort.Strings(names)
	return names
}

// FindComponent возвращает компонент по имени (без учёта регистра).
func (c *CompositeConfig) FindComponent(name string) (Component, bool) {
	target := NormalizeName(name)
	for _, comp := range c.Components {
		if NormalizeName(comp.Name) == target {
			return comp, true
		}
	}
	return Component{}, false
}
