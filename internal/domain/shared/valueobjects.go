// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Education Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// EducationLevel is a banding of grades that scopes which subjects and
// composite configurations apply (e.g., lower primary, upper primary).
type EducationLevel string

const (
	LevelLowerPrimary    EducationLevel = "lower_primary"
	LevelUpperPrimary    EducationLevel = "upper_primary"
	LevelJuniorSecondary EducationLevel = "junior_secondary"
	LevelSeniorSecondary EducationLevel = "senior_secondary"
)

// knownLevels lists every valid education level.
var knownLevels = map[EducationLevel]bool{
	LevelLowerPrimary:    true,
	LevelUpperPrimary:    true,
	LevelJuniorSecondary: true,
	LevelSeniorSecondary: true,
}

// IsValid checks if the education level is one of the known bands.
func (l EducationLevel) IsValid() bool {
	return knownLevels[l]
}

// String returns the string representation.
func (l EducationLevel) String() string {
	return string(l)
}

// NewEducationLevel creates an EducationLevel with validation.
func NewEducationLevel(s string) (EducationLevel, error) {
	level := EducationLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", ErrInvalidLevel
	}
	return level, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage represents a score in the range [0, 100].
// Values are kept unrounded internally; rounding happens at presentation.
type Percentage float64

// IsValid checks that the percentage is finite and within [0, 100].
func (p Percentage) IsValid() bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0 && f <= 100
}

// Float64 returns the underlying float64 value.
func (p Percentage) Float64() float64 {
	return float64(p)
}

// Round1 rounds to 1 decimal place for presentation.
func (p Percentage) Round1() float64 {
	return math.Round(float64(p)*10) / 10
}

// Round2 rounds to 2 decimal places for storage/display.
func (p Percentage) Round2() float64 {
	return math.Round(float64(p)*100) / 100
}

// String returns a human-readable representation.
func (p Percentage) String() string {
	return fmt.Sprintf("%.1f%%", p.Round1())
}

// ═══════════════════════════════════════════════════════════════════════════
// Weight Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Weight is a component's contribution to its composite parent, in [0, 1].
// A zero weight is legal and contributes nothing to the weighted sum.
type Weight float64

// IsValid checks that the weight is finite and within [0, 1].
func (w Weight) IsValid() bool {
	f := float64(w)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0 && f <= 1
}

// Float64 returns the underlying float64 value.
func (w Weight) Float64() float64 {
	return float64(w)
}

// NewWeight creates a Weight with validation.
func NewWeight(f float64) (Weight, error) {
	w := Weight(f)
	if !w.IsValid() {
		return 0, ErrInvalidWeight
	}
	return w, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Performance Category Value Object
// ═══════════════════════════════════════════════════════════════════════════

// PerformanceCategory is the qualitative band a subject average falls into.
type PerformanceCategory string

const (
	PerformanceExceeding   PerformanceCategory = "exceeding"
	PerformanceMeeting     PerformanceCategory = "meeting"
	PerformanceApproaching PerformanceCategory = "approaching"
	PerformanceBelow       PerformanceCategory = "below"
)

// CategorizeAverage maps an average percentage to its performance band.
// Thresholds follow the national competency-based reporting bands.
func CategorizeAverage(avg float64) PerformanceCategory {
	switch {
	case avg >= 80:
		return PerformanceExceeding
	case avg >= 60:
		return PerformanceMeeting
	case avg >= 40:
		return PerformanceApproaching
	default:
		return PerformanceBelow
	}
}

// String returns the string representation.
func (c PerformanceCategory) String() string {
	return string(c)
}
