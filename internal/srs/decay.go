package srs

import (
	"math"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Bounds on any retrievability estimate. Self-reported recall is never
// certain in either direction.
const (
	MinStrength = 0.05
	MaxStrength = 0.95
)

const (
	day          = 24 * time.Hour
	minStability = 1e-6
)

// CurrentStrength estimates the probability of recalling the card at now.
//
//	R = clamp(exp(-days / (stability * ease)) * strength, 0.05, 0.95)
//
// A time before the last review counts as zero elapsed days.
func CurrentStrength(card domain.ReviewCard, now time.Time) float64 {
	m := card.Memory

	var daysSince float64
	if m.Reviewed() && now.After(m.LastReviewed) {
		daysSince = now.Sub(m.LastReviewed).Hours() / 24
	}

	stability := m.StabilityFactor * m.EaseFactor
	if stability < minStability {
		stability = minStability
	}

	raw := math.Exp(-daysSince/stability) * clamp(m.Strength, 0, 1)
	if math.IsNaN(raw) {
		return MinStrength
	}
	return clamp(raw, MinStrength, MaxStrength)
}

// StrengthIn projects CurrentStrength the given number of days past now.
func StrengthIn(card domain.ReviewCard, now time.Time, days float64) float64 {
	return CurrentStrength(card, now.Add(daysToDuration(days)))
}

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * float64(day))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
