package srs

import (
	"math"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/m-mizutani/goerr/v2"
)

// Scheduler applies review outcomes to cards. It holds no per-card state and
// is safe for concurrent use; callers serialize reviews of the same card.
type Scheduler struct {
	params Params
}

// NewScheduler validates the parameters and returns a Scheduler.
func NewScheduler(params Params) (*Scheduler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{params: params}, nil
}

// Params returns the scheduler's parameters.
func (s *Scheduler) Params() Params {
	return s.params
}

// ProcessReview returns the card as updated by one review at now.
// The input card is never modified; on error it is returned unchanged.
func (s *Scheduler) ProcessReview(card domain.ReviewCard, outcome domain.Outcome, now time.Time) (domain.ReviewCard, error) {
	if err := outcome.Validate(); err != nil {
		return card, goerr.Wrap(err, "review rejected", goerr.V("card_id", card.ID))
	}
	if card.Suspended {
		return card, goerr.New("card is suspended",
			goerr.V("card_id", card.ID), goerr.T(domain.TagValidation))
	}
	return s.apply(card, outcome, now), nil
}

func (s *Scheduler) apply(card domain.ReviewCard, outcome domain.Outcome, now time.Time) domain.ReviewCard {
	p := s.params
	c := card
	passed := outcome.Passed()

	c.Memory.Strength = p.nextStrength(CurrentStrength(card, now), outcome)
	c.Memory.EaseFactor = p.nextEase(card.Memory.EaseFactor, outcome)
	c.Memory.StabilityFactor = p.nextStability(card.Memory.StabilityFactor, outcome)

	if passed {
		prev := card.Memory.Interval
		if prev <= 0 {
			prev = domain.InitialInterval
		}
		c.Memory.Interval = math.Min(math.Max(1, prev*c.Memory.EaseFactor), p.MaxInterval)
		c.Performance.Streak++
		c.LearningState = p.nextStateOnPass(card.LearningState, c.Memory.Interval)
	} else {
		c.Memory.Interval = p.relearningDays()
		c.Performance.Streak = 0
		if card.Graduated {
			c.Performance.Lapses++
		}
		c.LearningState = nextStateOnFail(card.LearningState)
	}

	if c.Memory.Interval > p.GraduationInterval {
		c.Graduated = true
	}

	c.Memory.ReviewCount++
	c.Memory.LastReviewed = now
	c.Memory.NextReview = now.Add(daysToDuration(c.Memory.Interval))
	return c
}

func (p Params) nextStateOnPass(state domain.LearningState, interval float64) domain.LearningState {
	switch state {
	case domain.New:
		return domain.Learning
	case domain.Learning:
		if interval >= p.ReviewThreshold {
			return domain.Review
		}
		return domain.Learning
	default:
		return domain.Review
	}
}

// nextStateOnFail keeps cards that never reached Review in Learning.
func nextStateOnFail(state domain.LearningState) domain.LearningState {
	switch state {
	case domain.New, domain.Learning:
		return domain.Learning
	default:
		return domain.Relearning
	}
}

func (p Params) nextStrength(prior float64, o domain.Outcome) float64 {
	if o.Passed() {
		gain := p.StrengthGain * float64(o.Quality) / 5
		return clamp(prior+(1-prior)*gain, 0, 1)
	}
	return clamp(math.Min(prior*p.FailureRetention, p.FailureStrengthCap), 0, 1)
}

func (p Params) nextEase(ease float64, o domain.Outcome) float64 {
	if ease <= 0 {
		ease = domain.InitialEaseFactor
	}

	var delta float64
	if o.Passed() {
		switch o.Level() {
		case domain.Easy:
			delta = p.EaseBonusEasy
		case domain.Hard:
			delta = -p.HardPenalty
		default:
			delta = p.EaseBonus * float64(o.Quality-2) / 3
		}
	} else {
		delta = -p.LapsePenalty * lapseScale(o.Level())
	}
	return clamp(ease+delta, p.MinEase, p.MaxEase)
}

func lapseScale(d domain.Difficulty) float64 {
	switch d {
	case domain.Easy:
		return 0.75
	case domain.Hard:
		return 1.5
	default:
		return 1
	}
}

func (p Params) nextStability(stability float64, o domain.Outcome) float64 {
	if stability <= 0 {
		stability = domain.InitialStabilityFactor
	}
	if o.Passed() {
		return stability * (1 + p.StabilityGrowth*float64(o.Quality)/5)
	}
	return math.Max(p.MinStability, stability*p.StabilityLapse)
}

// Replay rebuilds a card by applying its review log in order.
// Events are treated as medium-difficulty attempts whose correctness follows quality.
func (s *Scheduler) Replay(card domain.ReviewCard, events []domain.ReviewEvent) (domain.ReviewCard, error) {
	c := card
	for _, ev := range events {
		if ev.CardID != card.ID {
			return card, goerr.New("review event belongs to another card",
				goerr.V("card_id", card.ID), goerr.V("event_card_id", ev.CardID),
				goerr.T(domain.TagValidation))
		}
		outcome := domain.Outcome{
			IsCorrect:    ev.Correct(),
			Quality:      ev.Quality,
			ResponseTime: ev.ResponseTime,
		}
		if err := outcome.Validate(); err != nil {
			return card, goerr.Wrap(err, "replay rejected", goerr.V("card_id", card.ID), goerr.V("reviewed_at", ev.ReviewedAt))
		}
		c = s.apply(c, outcome, ev.ReviewedAt)
	}
	return c, nil
}

// PreviewEntry is the card that would result from answering with Quality.
type PreviewEntry struct {
	Quality int               `json:"quality"`
	Card    domain.ReviewCard `json:"card"`
}

// Preview returns the outcome of every quality 0-5 at medium difficulty.
func (s *Scheduler) Preview(card domain.ReviewCard, now time.Time) ([]PreviewEntry, error) {
	entries := make([]PreviewEntry, 0, 6)
	for q := 0; q <= 5; q++ {
		outcome := domain.Outcome{IsCorrect: q >= domain.PassingQuality, Quality: q}
		next, err := s.ProcessReview(card, outcome, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, PreviewEntry{Quality: q, Card: next})
	}
	return entries, nil
}
