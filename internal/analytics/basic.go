package analytics

import (
	"sort"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/srs"
)

// StateCounts counts active cards per learning state.
type StateCounts struct {
	New        int `json:"new"`
	Learning   int `json:"learning"`
	Review     int `json:"review"`
	Relearning int `json:"relearning"`
}

// BasicStats summarizes the card snapshot and the windowed review events.
type BasicStats struct {
	TotalCards          int         `json:"total_cards"`
	ActiveCards         int         `json:"active_cards"`
	SuspendedCards      int         `json:"suspended_cards"`
	GraduatedCards      int         `json:"graduated_cards"`
	DueNow              int         `json:"due_now"`
	States              StateCounts `json:"states"`
	TotalReviews        int         `json:"total_reviews"`
	CorrectReviews      int         `json:"correct_reviews"`
	AverageQuality      float64     `json:"average_quality"`
	Accuracy            float64     `json:"accuracy"`
	QualityHistogram    [6]int      `json:"quality_histogram"`
	AverageResponseTime float64     `json:"average_response_time"` // milliseconds
	CurrentStreak       int         `json:"current_streak"`
	LongestStreak       int         `json:"longest_streak"`
}

// ComputeBasicStats counts cards, summarizes window events and derives
// streaks from the full history.
func ComputeBasicStats(cards []domain.ReviewCard, window, history []domain.ReviewEvent, now time.Time, loc *time.Location) BasicStats {
	var s BasicStats

	s.TotalCards = len(cards)
	for _, c := range cards {
		if c.Graduated {
			s.GraduatedCards++
		}
		if c.Suspended {
			s.SuspendedCards++
			continue
		}
		s.ActiveCards++
		if srs.IsDue(c, now) {
			s.DueNow++
		}
		switch c.LearningState {
		case domain.New:
			s.States.New++
		case domain.Learning:
			s.States.Learning++
		case domain.Review:
			s.States.Review++
		case domain.Relearning:
			s.States.Relearning++
		}
	}

	var qualitySum, responseSum float64
	var timed int
	for _, ev := range window {
		s.TotalReviews++
		qualitySum += float64(ev.Quality)
		if ev.Correct() {
			s.CorrectReviews++
		}
		if ev.Quality >= 0 && ev.Quality < len(s.QualityHistogram) {
			s.QualityHistogram[ev.Quality]++
		}
		if ev.ResponseTime > 0 {
			responseSum += float64(ev.ResponseTime)
			timed++
		}
	}
	s.AverageQuality = ratio(qualitySum, float64(s.TotalReviews))
	s.Accuracy = ratio(float64(s.CorrectReviews), float64(s.TotalReviews))
	s.AverageResponseTime = ratio(responseSum, float64(timed))

	s.CurrentStreak, s.LongestStreak = Streaks(history, now, loc)
	return s
}

// Streaks returns the current and longest run of consecutive calendar days
// with at least one correct review. The current run ends today, or yesterday
// when nothing has been answered correctly yet today; otherwise it is zero.
// Events after now are ignored.
func Streaks(events []domain.ReviewEvent, now time.Time, loc *time.Location) (current, longest int) {
	active := make(map[string]bool)
	for _, ev := range events {
		if ev.Correct() && !ev.ReviewedAt.After(now) {
			active[dayKey(ev.ReviewedAt, loc)] = true
		}
	}
	if len(active) == 0 {
		return 0, 0
	}

	days := make([]time.Time, 0, len(active))
	for k := range active {
		d, err := time.ParseInLocation(dateLayout, k, loc)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	for i, d := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	cursor := startOfDay(now, loc)
	if !active[cursor.Format(dateLayout)] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for active[cursor.Format(dateLayout)] {
		current++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return current, longest
}
