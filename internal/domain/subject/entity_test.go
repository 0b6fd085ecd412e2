package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shulebook/shulebook/internal/domain/shared"
)

func TestSubject_Validate(t *testing.T) {
	plain := &Subject{ID: "s1", Name: "Mathematics", EducationLevel: shared.LevelUpperPrimary}
	assert.NoError(t, plain.Validate())
	assert.True(t, plain.IsPlain())

	component := &Subject{
		ID:              "s2",
		Name:            "Grammar",
		EducationLevel:  shared.LevelUpperPrimary,
		IsComponent:     true,
		CompositeParent: "English",
		ComponentWeight: 0.6,
	}
	assert.NoError(t, component.Validate())
	assert.False(t, component.IsPlain())

	noName := &Subject{EducationLevel: shared.LevelUpperPrimary}
	assert.ErrorIs(t, noName.Validate(), shared.ErrEmptySubjectName)

	badLevel := &Subject{Name: "English", EducationLevel: "middle_school"}
	assert.ErrorIs(t, badLevel.Validate(), shared.ErrInvalidLevel)

	both := &Subject{
		Name:           "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		IsComponent:    true,
	}
	assert.ErrorIs(t, both.Validate(), shared.ErrInvalidState)

	orphanComponent := &Subject{
		Name:           "Grammar",
		EducationLevel: shared.LevelUpperPrimary,
		IsComponent:    true,
	}
	assert.ErrorIs(t, orphanComponent.Validate(), shared.ErrEmptyValue)

	badWeight := &Subject{
		Name:            "Grammar",
		EducationLevel:  shared.LevelUpperPrimary,
		IsComponent:     true,
		CompositeParent: "English",
		ComponentWeight: 1.5,
	}
	assert.ErrorIs(t, badWeight.Validate(), shared.ErrInvalidWeight)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "english", NormalizeName("  English "))
	assert.Equal(t, "english", NormalizeName("ENGLISH"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestCompositeConfig_Validate(t *testing.T) {
	valid := &CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		IsComposite:    true,
		Components: []Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Composition", Weight: 0.4},
		},
	}
	assert.NoError(t, valid.Validate())

	empty := &CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
	}
	assert.ErrorIs(t, empty.Validate(), shared.ErrNoComponents)

	// Duplicate detection is case-insensitive
	dup := &CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		Components: []Component{
			{Name: "Grammar", Weight: 0.5},
			{Name: "GRAMMAR", Weight: 0.5},
		},
	}
	assert.ErrorIs(t, dup.Validate(), shared.ErrDuplicateComponent)

	badWeight := &CompositeConfig{
		SubjectName:    "English",
		EducationLevel: shared.LevelUpperPrimary,
		Components: []Component{
			{Name: "Grammar", Weight: 2},
		},
	}
	assert.ErrorIs(t, badWeight.Validate(), shared.ErrInvalidWeight)
}

func TestCompositeConfig_WeightSum(t *testing.T) {
	cfg := &CompositeConfig{
		Components: []Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Composition", Weight: 0.4},
		},
	}
	assert.InDelta(t, 1.0, cfg.WeightSum(), 1e-9)
}

func TestCompositeConfig_FindComponent(t *testing.T) {
	cfg := &CompositeConfig{
		Components: []Component{
			{Name: "Grammar", Weight: 0.6},
			{Name: "Composition", Weight: 0.4},
		},
	}

	comp, ok := cfg.FindComponent("grammar")
	assert.True(t, ok)
	assert.Equal(t, "Grammar", comp.Name)

	_, ok = cfg.FindComponent("Lugha")
	assert.False(t, ok)
}
