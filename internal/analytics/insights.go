package analytics

import (
	"fmt"
	"sort"
)

// InsightLevel grades an insight.
type InsightLevel string

const (
	LevelPositive   InsightLevel = "positive"
	LevelSuggestion InsightLevel = "suggestion"
	LevelWarning    InsightLevel = "warning"
)

// Insight is an observation derived from the report.
type Insight struct {
	Category string       `json:"category"`
	Level    InsightLevel `json:"level"`
	Message  string       `json:"message"`
}

// Priority orders recommendations.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is an action the learner can take.
type Recommendation struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Rule thresholds.
const (
	excellentQuality   = 4.5
	poorQuality        = 3.0
	lowAccuracy        = 0.6
	highLapseRate      = 0.3
	criticalShare      = 0.25
	heavyDailyWorkload = 50
	habitStreak        = 3
	longStreak         = 7
	newCardShare       = 0.5
)

// GenerateInsights applies the rule set to a report. Rules are evaluated in
// a fixed order so the result is deterministic.
func GenerateInsights(r Report) []Insight {
	b := r.Basic
	insights := []Insight{}

	if b.TotalReviews > 0 && b.AverageQuality >= excellentQuality {
		insights = append(insights, Insight{
			Category: "quality",
			Level:    LevelPositive,
			Message:  fmt.Sprintf("Excellent recall quality: %.1f out of 5 on average.", b.AverageQuality),
		})
	}
	if b.TotalReviews > 0 && b.Accuracy < lowAccuracy {
		insights = append(insights, Insight{
			Category: "accuracy",
			Level:    LevelWarning,
			Message:  fmt.Sprintf("Only %.0f%% of recent answers were correct.", b.Accuracy*100),
		})
	}

	switch {
	case b.CurrentStreak == 0:
		insights = append(insights, Insight{
			Category: "streak",
			Level:    LevelSuggestion,
			Message:  "No active streak. A short session today starts a new one.",
		})
	case b.CurrentStreak >= longStreak:
		insights = append(insights, Insight{
			Category: "streak",
			Level:    LevelPositive,
			Message:  fmt.Sprintf("%d days in a row. Keep it going.", b.CurrentStreak),
		})
	}

	if r.Efficiency.LapseRate > highLapseRate {
		insights = append(insights, Insight{
			Category: "lapses",
			Level:    LevelWarning,
			Message:  fmt.Sprintf("Mastered items are being forgotten often (%.2f lapses per mastered item).", r.Efficiency.LapseRate),
		})
	}

	if total := r.Memory.Total(); total > 0 && ratio(float64(r.Memory.Fading()), float64(total)) > criticalShare {
		insights = append(insights, Insight{
			Category: "memory",
			Level:    LevelWarning,
			Message:  fmt.Sprintf("%d of %d items are close to forgotten.", r.Memory.Fading(), total),
		})
	}

	if len(r.Workload) > 0 && r.Workload[0].DueCards > heavyDailyWorkload {
		insights = append(insights, Insight{
			Category: "workload",
			Level:    LevelSuggestion,
			Message:  fmt.Sprintf("%d reviews are due within a day. Consider pausing new items.", r.Workload[0].DueCards),
		})
	}
	return insights
}

// GenerateRecommendations applies the recommendation rules and orders the
// result by priority, keeping rule order within a priority.
func GenerateRecommendations(r Report) []Recommendation {
	b := r.Basic
	recs := []Recommendation{}

	if b.CurrentStreak < habitStreak {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Category:    "habit",
			Title:       "Build a daily habit",
			Description: "Short daily sessions retain more than occasional long ones.",
		})
	}
	if b.TotalReviews > 0 && b.AverageQuality < poorQuality {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Category:    "difficulty",
			Title:       "Focus on hard items",
			Description: "Recent answers were mostly incorrect. Slow down and review the hardest items first.",
		})
	}
	if b.ActiveCards > 0 && ratio(float64(b.States.New), float64(b.ActiveCards)) > newCardShare {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Category:    "balance",
			Title:       "Balance new vs. review",
			Description: "More than half of your items are unseen. Mix reviews in before adding more.",
		})
	}
	if fading := r.Memory.Fading(); fading > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Category:    "memory",
			Title:       "Rescue fading items",
			Description: fmt.Sprintf("%d items are close to forgotten. Review them soon.", fading),
		})
	}
	if b.DueNow > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityLow,
			Category:    "backlog",
			Title:       "Clear your backlog",
			Description: fmt.Sprintf("%d items are due now.", b.DueNow),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.rank() < recs[j].Priority.rank()
	})
	return recs
}
