package analytics

import (
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// TrendPoint aggregates the reviews of one calendar day.
type TrendPoint struct {
	Date                string  `json:"date"`
	Reviews             int     `json:"reviews"`
	AverageQuality      float64 `json:"average_quality"`
	Accuracy            float64 `json:"accuracy"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// ComputeTrends returns exactly days buckets, oldest first, ending today.
// Days without reviews are present with zero values. days is capped at
// MaxWindowDays.
func ComputeTrends(events []domain.ReviewEvent, now time.Time, days int, loc *time.Location) []TrendPoint {
	if days <= 0 {
		return []TrendPoint{}
	}
	days = min(days, MaxWindowDays)

	type acc struct {
		reviews, correct, timed int
		quality, response       float64
	}

	start := windowStart(now, days, loc)
	points := make([]TrendPoint, days)
	buckets := make([]acc, days)
	index := make(map[string]int, days)
	for i := range points {
		key := start.AddDate(0, 0, i).Format(dateLayout)
		points[i].Date = key
		index[key] = i
	}

	for _, ev := range events {
		i, ok := index[dayKey(ev.ReviewedAt, loc)]
		if !ok || ev.ReviewedAt.After(now) {
			continue
		}
		b := &buckets[i]
		b.reviews++
		b.quality += float64(ev.Quality)
		if ev.Correct() {
			b.correct++
		}
		if ev.ResponseTime > 0 {
			b.response += float64(ev.ResponseTime)
			b.timed++
		}
	}

	for i, b := range buckets {
		points[i].Reviews = b.reviews
		points[i].AverageQuality = ratio(b.quality, float64(b.reviews))
		points[i].Accuracy = ratio(float64(b.correct), float64(b.reviews))
		points[i].AverageResponseTime = ratio(b.response, float64(b.timed))
	}
	return points
}
