package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func card(id string, mutate func(c *domain.ReviewCard)) domain.ReviewCard {
	c := domain.NewReviewCard(id, "u1", domain.Content{SourceText: id}, t0.Add(-60*day))
	if mutate != nil {
		mutate(&c)
	}
	return c
}

// reviewed sets a card whose strength barely decays, so CurrentStrength ~ strength.
func reviewed(strength float64) func(c *domain.ReviewCard) {
	return func(c *domain.ReviewCard) {
		c.LearningState = domain.Review
		c.Memory.Strength = strength
		c.Memory.StabilityFactor = 1e6
		c.Memory.LastReviewed = t0
		c.Memory.NextReview = t0.Add(30 * day)
		c.Memory.ReviewCount = 3
	}
}

func event(cardID string, at time.Time, quality int, ms int64) domain.ReviewEvent {
	return domain.ReviewEvent{CardID: cardID, ReviewedAt: at, Quality: quality, ResponseTime: ms}
}

func TestCalculateUserPerformanceEmpty(t *testing.T) {
	r := CalculateUserPerformance(nil, nil, DefaultOptions(t0))

	assert.Equal(t, BasicStats{}, r.Basic)
	assert.Len(t, r.Trends, DefaultWindowDays)
	for _, p := range r.Trends {
		assert.Zero(t, p.Reviews)
		assert.Zero(t, p.Accuracy)
	}
	assert.Equal(t, MemoryDistribution{}, r.Memory)
	assert.Equal(t, Efficiency{}, r.Efficiency)

	require.Len(t, r.Retention, len(RetentionHorizons))
	for _, p := range r.Retention {
		assert.Zero(t, p.AverageStrength)
	}
	require.Len(t, r.Workload, len(WorkloadHorizons))
	for _, p := range r.Workload {
		assert.Zero(t, p.DueCards)
	}

	require.NotNil(t, r.Projection)
	assert.Zero(t, r.Projection.PendingCards)
	assert.Zero(t, r.Projection.EstimatedDays)
	assert.Zero(t, r.Projection.Confidence)

	_, err := json.Marshal(r)
	require.NoError(t, err)
}

func TestOptionsDefaults(t *testing.T) {
	r := CalculateUserPerformance(nil, nil, Options{CurrentTime: t0})
	assert.Equal(t, DefaultWindowDays, r.WindowDays)
	assert.Nil(t, r.Projection)
	assert.True(t, r.GeneratedAt.Equal(t0))

	r = CalculateUserPerformance(nil, nil, Options{CurrentTime: t0, Days: 7, IncludeProjections: true})
	assert.Len(t, r.Trends, 7)
	assert.NotNil(t, r.Projection)

	r = CalculateUserPerformance(nil, nil, Options{CurrentTime: t0, Days: math.MaxInt})
	assert.Equal(t, MaxWindowDays, r.WindowDays)
	assert.Len(t, r.Trends, MaxWindowDays)

	assert.Len(t, ComputeTrends(nil, t0, 400000, time.UTC), MaxWindowDays)
}

func TestAccuracy(t *testing.T) {
	var perfect, blank []domain.ReviewEvent
	for i := 0; i < 10; i++ {
		at := t0.Add(-time.Duration(i) * time.Hour)
		perfect = append(perfect, event("c", at, 5, 1000))
		blank = append(blank, event("c", at, 0, 1000))
	}

	r := CalculateUserPerformance(nil, perfect, DefaultOptions(t0))
	assert.Equal(t, 1.0, r.Basic.Accuracy)
	assert.Equal(t, 5.0, r.Basic.AverageQuality)
	assert.Equal(t, 10, r.Basic.QualityHistogram[5])

	r = CalculateUserPerformance(nil, blank, DefaultOptions(t0))
	assert.Equal(t, 0.0, r.Basic.Accuracy)
	assert.Equal(t, 10, r.Basic.QualityHistogram[0])
}

func TestBasicStats(t *testing.T) {
	cards := []domain.ReviewCard{
		card("new", nil),
		card("learning", func(c *domain.ReviewCard) { c.LearningState = domain.Learning; c.Memory.NextReview = t0.Add(day) }),
		card("review", reviewed(0.9)),
		card("relearning", func(c *domain.ReviewCard) { c.LearningState = domain.Relearning; c.Graduated = true }),
		card("suspended", func(c *domain.ReviewCard) { c.Suspended = true }),
	}
	events := []domain.ReviewEvent{
		event("review", t0.Add(-time.Hour), 4, 2000),
		event("review", t0.Add(-2*time.Hour), 2, 0),
		event("learning", t0.Add(-3*time.Hour), 3, 4000),
		event("learning", t0.Add(-40*day), 5, 1000), // outside the window
	}

	r := CalculateUserPerformance(cards, events, DefaultOptions(t0))
	b := r.Basic

	assert.Equal(t, 5, b.TotalCards)
	assert.Equal(t, 4, b.ActiveCards)
	assert.Equal(t, 1, b.SuspendedCards)
	assert.Equal(t, 1, b.GraduatedCards)
	assert.Equal(t, StateCounts{New: 1, Learning: 1, Review: 1, Relearning: 1}, b.States)
	assert.Equal(t, 2, b.DueNow)

	assert.Equal(t, 3, b.TotalReviews)
	assert.Equal(t, 2, b.CorrectReviews)
	assert.InDelta(t, 3.0, b.AverageQuality, 1e-9)
	assert.InDelta(t, 2.0/3.0, b.Accuracy, 1e-9)
	assert.Equal(t, [6]int{0, 0, 1, 1, 1, 0}, b.QualityHistogram)
	assert.InDelta(t, 3000, b.AverageResponseTime, 1e-9)
}

func TestStreaks(t *testing.T) {
	ok := func(daysAgo int) domain.ReviewEvent {
		return event("c", t0.Add(-time.Duration(daysAgo)*day), 4, 1000)
	}
	failed := func(daysAgo int) domain.ReviewEvent {
		return event("c", t0.Add(-time.Duration(daysAgo)*day), 1, 1000)
	}

	testCases := []struct {
		name        string
		events      []domain.ReviewEvent
		wantCurrent int
		wantLongest int
	}{
		{"no events", nil, 0, 0},
		{"today and two before", []domain.ReviewEvent{ok(0), ok(1), ok(2), ok(5), ok(6), ok(7), ok(8)}, 3, 4},
		{"nothing yet today", []domain.ReviewEvent{ok(1), ok(2)}, 2, 2},
		{"gap of two days", []domain.ReviewEvent{ok(2), ok(3)}, 0, 2},
		{"failed days do not count", []domain.ReviewEvent{failed(0), ok(1), failed(2), ok(3)}, 1, 1},
		{"many reviews on one day", []domain.ReviewEvent{ok(0), ok(0), ok(0)}, 1, 1},
		{"future events ignored", []domain.ReviewEvent{ok(-1), ok(0)}, 1, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			current, longest := Streaks(tc.events, t0, time.UTC)
			assert.Equal(t, tc.wantCurrent, current)
			assert.Equal(t, tc.wantLongest, longest)
		})
	}
}

func TestTrendsTwoActiveDays(t *testing.T) {
	start := time.Date(2025, 5, 17, 0, 0, 0, 0, time.UTC) // first day of the 30-day window ending t0
	events := []domain.ReviewEvent{
		event("a", start.Add(9*time.Hour), 5, 1000),
		event("b", start.Add(20*time.Hour), 2, 3000),
		event("a", start.Add(14*day+12*time.Hour), 4, 0),
	}

	r := CalculateUserPerformance(nil, events, DefaultOptions(t0))
	require.Len(t, r.Trends, 30)

	var active int
	for _, p := range r.Trends {
		if p.Reviews > 0 {
			active++
		}
	}
	assert.Equal(t, 2, active)

	first := r.Trends[0]
	assert.Equal(t, "2025-05-17", first.Date)
	assert.Equal(t, 2, first.Reviews)
	assert.InDelta(t, 3.5, first.AverageQuality, 1e-9)
	assert.InDelta(t, 0.5, first.Accuracy, 1e-9)
	assert.InDelta(t, 2000, first.AverageResponseTime, 1e-9)

	assert.Equal(t, 1, r.Trends[14].Reviews)
	assert.Zero(t, r.Trends[14].AverageResponseTime)
	assert.Equal(t, "2025-06-15", r.Trends[29].Date)
}

func TestTrendsLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 20:00 UTC on the 14th is already the 15th in Tokyo
	events := []domain.ReviewEvent{event("a", time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC), 4, 1000)}

	points := ComputeTrends(events, t0, 3, tokyo)
	require.Len(t, points, 3)
	assert.Equal(t, "2025-06-15", points[2].Date)
	assert.Equal(t, 1, points[2].Reviews)
}

func TestMemoryDistribution(t *testing.T) {
	cards := []domain.ReviewCard{
		card("critical", reviewed(0.1)),
		card("weak", reviewed(0.3)),
		card("good", reviewed(0.6)),
		card("strong", reviewed(0.9)),
		card("strong2", reviewed(1)),
		card("suspended", func(c *domain.ReviewCard) { reviewed(0.1)(c); c.Suspended = true }),
	}

	d := ComputeMemoryDistribution(cards, t0)
	assert.Equal(t, MemoryDistribution{Critical: 1, Weak: 1, Good: 1, Strong: 2}, d)
	assert.Equal(t, 5, d.Total())
	assert.Equal(t, 1, d.Fading())

	withNew := ComputeMemoryDistribution(append(cards, card("new", nil)), t0)
	assert.Equal(t, 2, withNew.Critical)
	assert.Equal(t, 1, withNew.CriticalUnreviewed)
	assert.Equal(t, 1, withNew.Fading())
}

func TestForecastRetention(t *testing.T) {
	cards := []domain.ReviewCard{
		card("a", func(c *domain.ReviewCard) {
			c.Memory.Strength = 0.9
			c.Memory.StabilityFactor = 5
			c.Memory.EaseFactor = 2
			c.Memory.LastReviewed = t0
		}),
		card("unreviewed", nil),
	}

	points := ForecastRetention(cards, t0, RetentionHorizons)
	require.Len(t, points, 4)
	assert.Equal(t, 1, points[0].HorizonDays)
	assert.Equal(t, 1, points[0].Cards)
	assert.InDelta(t, 0.9*0.904837, points[0].AverageStrength, 1e-5)
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i].AverageStrength, points[i-1].AverageStrength)
	}
	assert.Equal(t, 0.05, points[3].AverageStrength)
}

func TestForecastWorkload(t *testing.T) {
	due := func(offset time.Duration) func(c *domain.ReviewCard) {
		return func(c *domain.ReviewCard) { c.Memory.NextReview = t0.Add(offset) }
	}
	cards := []domain.ReviewCard{
		card("overdue", due(-day)),
		card("soon", due(12*time.Hour)),
		card("week", due(5*day)),
		card("month", due(20*day)),
		card("later", due(60*day)),
		card("suspended", func(c *domain.ReviewCard) { c.Suspended = true }),
	}

	points := ForecastWorkload(cards, t0, WorkloadHorizons)
	assert.Equal(t, []WorkloadPoint{
		{HorizonDays: 1, DueCards: 2},
		{HorizonDays: 7, DueCards: 3},
		{HorizonDays: 30, DueCards: 4},
	}, points)
}

func TestComputeEfficiency(t *testing.T) {
	cards := []domain.ReviewCard{
		card("g1", func(c *domain.ReviewCard) { c.Graduated = true; c.Memory.ReviewCount = 4; c.Performance.Lapses = 1 }),
		card("g2", func(c *domain.ReviewCard) { c.Graduated = true; c.Memory.ReviewCount = 6 }),
		card("l", func(c *domain.ReviewCard) { c.Memory.ReviewCount = 2 }),
	}
	var events []domain.ReviewEvent
	for i := 0; i < 60; i++ {
		q := 4
		if i%3 == 0 {
			q = 1
		}
		events = append(events, event("l", t0.Add(-time.Duration(i)*time.Minute), q, int64(time.Minute/time.Millisecond)))
	}

	e := ComputeEfficiency(cards, events)
	assert.InDelta(t, 1.0, e.StudyHours, 1e-9)
	assert.Equal(t, 2, e.GraduatedCards)
	assert.InDelta(t, 2.0, e.MasteryRate, 1e-9)
	assert.InDelta(t, 5.0, e.AvgReviewsToMastery, 1e-9)
	assert.InDelta(t, 0.5, e.LapseRate, 1e-9)
	assert.InDelta(t, 40.0/60.0, e.AnswersPerMinute, 1e-9)

	assert.Equal(t, Efficiency{}, ComputeEfficiency(nil, nil))
}

func TestProjectMastery(t *testing.T) {
	graduated := func(reviews int) func(c *domain.ReviewCard) {
		return func(c *domain.ReviewCard) {
			c.Graduated = true
			c.LearningState = domain.Review
			c.Memory.ReviewCount = reviews
		}
	}
	cards := []domain.ReviewCard{
		card("g1", graduated(4)),
		card("g2", graduated(6)),
		card("new", nil),
		card("learning", func(c *domain.ReviewCard) { c.LearningState = domain.Learning; c.Memory.ReviewCount = 2 }),
		card("over", func(c *domain.ReviewCard) { c.LearningState = domain.Learning; c.Memory.ReviewCount = 9 }),
		card("suspended", func(c *domain.ReviewCard) { c.Suspended = true }),
	}
	var events []domain.ReviewEvent
	for i := 0; i < 14; i++ {
		events = append(events, event("g1", t0.Add(-time.Duration(i)*10*time.Hour), 4, 1000))
	}
	events = append(events, event("g1", t0.Add(-30*day), 4, 1000))

	p := ProjectMastery(cards, events, t0)
	assert.Equal(t, 3, p.PendingCards)
	assert.InDelta(t, 5.0, p.TargetReviews, 1e-9)
	assert.InDelta(t, 8.0, p.RemainingReviews, 1e-9)
	assert.InDelta(t, 2.0, p.ReviewsPerDay, 1e-9)
	assert.InDelta(t, 4.0, p.EstimatedDays, 1e-9)
	assert.True(t, p.Achievable)
	assert.InDelta(t, 0.2, p.Confidence, 1e-9)

	t.Run("no graduated cards and no activity", func(t *testing.T) {
		p := ProjectMastery([]domain.ReviewCard{card("new", nil)}, nil, t0)
		assert.Equal(t, FallbackReviewsToMastery, p.TargetReviews)
		assert.Equal(t, 5.0, p.RemainingReviews)
		assert.False(t, p.Achievable)
		assert.Zero(t, p.EstimatedDays)
		assert.Zero(t, p.Confidence)
	})

	t.Run("confidence saturates", func(t *testing.T) {
		var many []domain.ReviewCard
		for i := 0; i < 25; i++ {
			many = append(many, card(string(rune('a'+i)), graduated(5)))
		}
		assert.Equal(t, 1.0, ProjectMastery(many, nil, t0).Confidence)
	})
}

func TestInsightsAndRecommendations(t *testing.T) {
	t.Run("struggling learner", func(t *testing.T) {
		cards := []domain.ReviewCard{
			card("n1", nil),
			card("n2", nil),
			card("g", func(c *domain.ReviewCard) { reviewed(0.1)(c); c.Graduated = true; c.Performance.Lapses = 2 }),
		}
		events := []domain.ReviewEvent{
			event("g", t0.Add(-3*day), 1, 1000),
			event("g", t0.Add(-4*day), 2, 1000),
		}
		r := CalculateUserPerformance(cards, events, DefaultOptions(t0))

		assert.Contains(t, categories(r.Insights), "lapses")
		assert.Contains(t, categories(r.Insights), "accuracy")
		assert.Contains(t, categories(r.Insights), "memory")
		assert.Contains(t, r.Insights, Insight{
			Category: "streak",
			Level:    LevelSuggestion,
			Message:  "No active streak. A short session today starts a new one.",
		})

		var got []string
		for _, rec := range r.Recommendations {
			got = append(got, rec.Category)
		}
		assert.Equal(t, []string{"habit", "difficulty", "balance", "memory", "backlog"}, got)
		for i := 1; i < len(r.Recommendations); i++ {
			assert.LessOrEqual(t, r.Recommendations[i-1].Priority.rank(), r.Recommendations[i].Priority.rank())
		}
	})

	t.Run("freshly imported deck", func(t *testing.T) {
		cards := []domain.ReviewCard{card("n1", nil), card("n2", nil), card("n3", nil)}
		r := CalculateUserPerformance(cards, nil, DefaultOptions(t0))

		assert.Equal(t, 3, r.Memory.Critical)
		assert.Zero(t, r.Memory.Fading())
		assert.NotContains(t, categories(r.Insights), "memory")
		for _, rec := range r.Recommendations {
			assert.NotEqual(t, "memory", rec.Category)
		}
	})

	t.Run("strong learner", func(t *testing.T) {
		cards := []domain.ReviewCard{card("a", reviewed(0.9)), card("b", reviewed(0.9))}
		var events []domain.ReviewEvent
		for i := 0; i < 10; i++ {
			events = append(events, event("a", t0.Add(-time.Duration(i)*day), 5, 1000))
		}
		r := CalculateUserPerformance(cards, events, DefaultOptions(t0))

		assert.Equal(t, 10, r.Basic.CurrentStreak)
		assert.Equal(t, []Insight{
			{Category: "quality", Level: LevelPositive, Message: "Excellent recall quality: 5.0 out of 5 on average."},
			{Category: "streak", Level: LevelPositive, Message: "10 days in a row. Keep it going."},
		}, r.Insights)
		assert.Empty(t, r.Recommendations)
	})
}

func categories(insights []Insight) []string {
	out := make([]string, len(insights))
	for i, in := range insights {
		out[i] = in.Category
	}
	return out
}

func TestDeterminism(t *testing.T) {
	cards := []domain.ReviewCard{
		card("a", reviewed(0.4)),
		card("b", reviewed(0.85)),
		card("c", func(c *domain.ReviewCard) { c.LearningState = domain.Learning; c.Memory.ReviewCount = 1 }),
		card("d", func(c *domain.ReviewCard) { c.Graduated = true; c.Memory.ReviewCount = 7; c.Performance.Lapses = 3 }),
	}
	var events []domain.ReviewEvent
	for i := 0; i < 40; i++ {
		events = append(events, event("a", t0.Add(-time.Duration(i)*17*time.Hour), i%6, int64(500+i*37)))
	}

	opts := DefaultOptions(t0)
	first, err := json.Marshal(CalculateUserPerformance(cards, events, opts))
	require.NoError(t, err)
	second, err := json.Marshal(CalculateUserPerformance(cards, events, opts))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	// inputs are not modified
	assert.Equal(t, 0.4, cards[0].Memory.Strength)
	assert.Equal(t, 0, events[0].Quality)
}
