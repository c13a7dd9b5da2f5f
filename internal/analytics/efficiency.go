package analytics

import (
	"math"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Efficiency relates mastered cards to time spent studying.
type Efficiency struct {
	StudyHours          float64 `json:"study_hours"`
	GraduatedCards      int     `json:"graduated_cards"`
	MasteryRate         float64 `json:"mastery_rate"`           // graduated cards per study hour
	AvgReviewsToMastery float64 `json:"avg_reviews_to_mastery"` // over graduated cards
	LapseRate           float64 `json:"lapse_rate"`             // lapses per graduated card
	AnswersPerMinute    float64 `json:"answers_per_minute"`     // correct answers per study minute
}

// ComputeEfficiency uses the whole supplied history, not just the window.
// Study time is the sum of recorded response times.
func ComputeEfficiency(cards []domain.ReviewCard, reviews []domain.ReviewEvent) Efficiency {
	var e Efficiency

	var ms float64
	var correct int
	for _, ev := range reviews {
		if ev.ResponseTime > 0 {
			ms += float64(ev.ResponseTime)
		}
		if ev.Correct() {
			correct++
		}
	}
	e.StudyHours = ms / float64(time.Hour/time.Millisecond)
	minutes := ms / float64(time.Minute/time.Millisecond)

	var reviewsToMastery, lapses int
	for _, c := range cards {
		lapses += c.Performance.Lapses
		if c.Graduated {
			e.GraduatedCards++
			reviewsToMastery += c.Memory.ReviewCount
		}
	}

	graduated := float64(e.GraduatedCards)
	e.MasteryRate = ratio(graduated, e.StudyHours)
	e.AvgReviewsToMastery = ratio(float64(reviewsToMastery), graduated)
	e.LapseRate = ratio(float64(lapses), graduated)
	e.AnswersPerMinute = ratio(float64(correct), minutes)
	return e
}

// Mastery projection tuning.
const (
	// FallbackReviewsToMastery is the target when no card has graduated yet.
	FallbackReviewsToMastery = 5.0
	// ConfidenceSampleSize is the number of graduated cards at which the
	// projection's confidence saturates.
	ConfidenceSampleSize = 10
	rateWindowDays       = 7
)

// MasteryProjection estimates how long the unlearned cards will take.
type MasteryProjection struct {
	PendingCards     int     `json:"pending_cards"`
	TargetReviews    float64 `json:"target_reviews"`
	RemainingReviews float64 `json:"remaining_reviews"`
	ReviewsPerDay    float64 `json:"reviews_per_day"`
	EstimatedDays    float64 `json:"estimated_days"`
	Achievable       bool    `json:"achievable"` // false when there was no recent activity
	Confidence       float64 `json:"confidence"`
}

// ProjectMastery estimates days until every New or Learning card has had as
// many reviews as graduated cards needed on average, at the review rate of
// the last seven days.
func ProjectMastery(cards []domain.ReviewCard, reviews []domain.ReviewEvent, now time.Time) MasteryProjection {
	eff := ComputeEfficiency(cards, nil)

	p := MasteryProjection{TargetReviews: eff.AvgReviewsToMastery}
	if eff.GraduatedCards == 0 {
		p.TargetReviews = FallbackReviewsToMastery
	}
	p.Confidence = math.Min(1, float64(eff.GraduatedCards)/ConfidenceSampleSize)

	for _, c := range cards {
		if c.Suspended {
			continue
		}
		if c.LearningState != domain.New && c.LearningState != domain.Learning {
			continue
		}
		p.PendingCards++
		p.RemainingReviews += math.Max(0, p.TargetReviews-float64(c.Memory.ReviewCount))
	}

	since := now.Add(-rateWindowDays * 24 * time.Hour)
	var recent int
	for _, ev := range reviews {
		if ev.ReviewedAt.After(since) && !ev.ReviewedAt.After(now) {
			recent++
		}
	}
	p.ReviewsPerDay = float64(recent) / rateWindowDays

	switch {
	case p.RemainingReviews == 0:
		p.Achievable = true
	case p.ReviewsPerDay > 0:
		p.EstimatedDays = p.RemainingReviews / p.ReviewsPerDay
		p.Achievable = true
	}
	return p
}
