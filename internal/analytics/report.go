// Package analytics turns a snapshot of review cards and their review log
// into statistics, trends and forecasts.
//
// Every function here is pure: the same cards, events and options always
// produce the same Report, and the Report contains no maps so its JSON
// encoding is stable as well.
package analytics

import (
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// DefaultWindowDays is the trailing window used when Options.Days is not set.
const DefaultWindowDays = 30

// MaxWindowDays bounds the trailing window. Larger requests are clamped.
const MaxWindowDays = 365

// Options controls CalculateUserPerformance.
type Options struct {
	// Days is the trailing window, in calendar days including today, for
	// event statistics and trends. Zero or less means DefaultWindowDays and
	// anything above MaxWindowDays is clamped to it.
	Days int
	// IncludeProjections adds the mastery projection to the report.
	IncludeProjections bool
	// CurrentTime is the reference instant. Zero means time.Now, which makes
	// the report depend on the wall clock.
	CurrentTime time.Time
	// Location defines calendar-day boundaries. Nil means UTC.
	Location *time.Location
}

// DefaultOptions returns a 30-day window with projections, evaluated at now.
func DefaultOptions(now time.Time) Options {
	return Options{
		Days:               DefaultWindowDays,
		IncludeProjections: true,
		CurrentTime:        now,
		Location:           time.UTC,
	}
}

func (o Options) normalize() Options {
	if o.Days <= 0 {
		o.Days = DefaultWindowDays
	}
	if o.Days > MaxWindowDays {
		o.Days = MaxWindowDays
	}
	if o.CurrentTime.IsZero() {
		o.CurrentTime = time.Now()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Report is the full analytics result for one learner.
type Report struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	WindowDays      int                `json:"window_days"`
	Basic           BasicStats         `json:"basic"`
	Trends          []TrendPoint       `json:"trends"`
	Memory          MemoryDistribution `json:"memory"`
	Efficiency      Efficiency         `json:"efficiency"`
	Retention       []RetentionPoint   `json:"retention"`
	Workload        []WorkloadPoint    `json:"workload"`
	Projection      *MasteryProjection `json:"projection,omitempty"`
	Insights        []Insight          `json:"insights"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// CalculateUserPerformance builds the report for the given cards and review
// events. Empty input yields a zeroed report, never an error.
func CalculateUserPerformance(cards []domain.ReviewCard, reviews []domain.ReviewEvent, opts Options) Report {
	opts = opts.normalize()
	now := opts.CurrentTime

	window := windowEvents(reviews, now, opts.Days, opts.Location)

	r := Report{
		GeneratedAt: now,
		WindowDays:  opts.Days,
		Basic:       ComputeBasicStats(cards, window, reviews, now, opts.Location),
		Trends:      ComputeTrends(window, now, opts.Days, opts.Location),
		Memory:      ComputeMemoryDistribution(cards, now),
		Efficiency:  ComputeEfficiency(cards, reviews),
		Retention:   ForecastRetention(cards, now, RetentionHorizons),
		Workload:    ForecastWorkload(cards, now, WorkloadHorizons),
	}
	if opts.IncludeProjections {
		p := ProjectMastery(cards, reviews, now)
		r.Projection = &p
	}
	r.Insights = GenerateInsights(r)
	r.Recommendations = GenerateRecommendations(r)
	return r
}

// windowEvents keeps the events from the start of the first window day up to now.
func windowEvents(reviews []domain.ReviewEvent, now time.Time, days int, loc *time.Location) []domain.ReviewEvent {
	start := windowStart(now, days, loc)
	var out []domain.ReviewEvent
	for _, ev := range reviews {
		if ev.ReviewedAt.Before(start) || ev.ReviewedAt.After(now) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func windowStart(now time.Time, days int, loc *time.Location) time.Time {
	return startOfDay(now, loc).AddDate(0, 0, -(days - 1))
}

const dateLayout = "2006-01-02"

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
