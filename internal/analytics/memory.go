package analytics

import (
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/srs"
)

// Strength band boundaries for MemoryDistribution.
const (
	weakThreshold   = 0.2
	goodThreshold   = 0.5
	strongThreshold = 0.8
)

// MemoryDistribution buckets active cards by current strength.
type MemoryDistribution struct {
	Critical int `json:"critical"` // < 0.2
	Weak     int `json:"weak"`     // [0.2, 0.5)
	Good     int `json:"good"`     // [0.5, 0.8)
	Strong   int `json:"strong"`   // >= 0.8

	// CriticalUnreviewed counts the never-reviewed cards inside Critical.
	// Their strength is the floor, not something that faded.
	CriticalUnreviewed int `json:"critical_unreviewed"`
}

// Total is the number of classified cards.
func (d MemoryDistribution) Total() int {
	return d.Critical + d.Weak + d.Good + d.Strong
}

// Fading is the number of critical cards that were learned and then decayed.
func (d MemoryDistribution) Fading() int {
	return d.Critical - d.CriticalUnreviewed
}

// ComputeMemoryDistribution classifies every non-suspended card.
func ComputeMemoryDistribution(cards []domain.ReviewCard, now time.Time) MemoryDistribution {
	var d MemoryDistribution
	for _, c := range cards {
		if c.Suspended {
			continue
		}
		switch s := srs.CurrentStrength(c, now); {
		case s < weakThreshold:
			d.Critical++
			if !c.Memory.Reviewed() {
				d.CriticalUnreviewed++
			}
		case s < goodThreshold:
			d.Weak++
		case s < strongThreshold:
			d.Good++
		default:
			d.Strong++
		}
	}
	return d
}

// Forecast horizons in days.
var (
	RetentionHorizons = []int{1, 7, 30, 90}
	WorkloadHorizons  = []int{1, 7, 30}
)

// RetentionPoint is the mean projected strength at one horizon.
type RetentionPoint struct {
	HorizonDays     int     `json:"horizon_days"`
	AverageStrength float64 `json:"average_strength"`
	Cards           int     `json:"cards"`
}

// ForecastRetention averages the projected strength of every reviewed card
// at each horizon. With no reviewed cards every horizon reports zero.
func ForecastRetention(cards []domain.ReviewCard, now time.Time, horizons []int) []RetentionPoint {
	points := make([]RetentionPoint, len(horizons))
	for i, h := range horizons {
		var sum float64
		var n int
		for _, c := range cards {
			if !c.Memory.Reviewed() {
				continue
			}
			sum += srs.StrengthIn(c, now, float64(h))
			n++
		}
		points[i] = RetentionPoint{HorizonDays: h, AverageStrength: ratio(sum, float64(n)), Cards: n}
	}
	return points
}

// WorkloadPoint is the number of cards that will be due within a horizon.
type WorkloadPoint struct {
	HorizonDays int `json:"horizon_days"`
	DueCards    int `json:"due_cards"`
}

// ForecastWorkload counts active cards whose next review falls on or before
// now plus each horizon. Overdue cards count toward every horizon.
func ForecastWorkload(cards []domain.ReviewCard, now time.Time, horizons []int) []WorkloadPoint {
	points := make([]WorkloadPoint, len(horizons))
	for i, h := range horizons {
		limit := now.Add(time.Duration(h) * 24 * time.Hour)
		var n int
		for _, c := range cards {
			if srs.IsDue(c, limit) {
				n++
			}
		}
		points[i] = WorkloadPoint{HorizonDays: h, DueCards: n}
	}
	return points
}
