// Package study runs review sessions: it loads a card, applies the
// scheduler, persists the result and answers queue and report queries.
package study

import (
	"context"
	"time"

	"github.com/conorfennell/recall/internal/analytics"
	"github.com/conorfennell/recall/internal/clock"
	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/logging"
	"github.com/conorfennell/recall/internal/metrics"
	"github.com/conorfennell/recall/internal/srs"
	"github.com/m-mizutani/goerr/v2"
)

// CardStore persists review cards.
type CardStore interface {
	LoadCards(ctx context.Context, userID string) ([]domain.ReviewCard, error)
	FindCard(ctx context.Context, userID, cardID string) (domain.ReviewCard, error)
	SaveCard(ctx context.Context, card domain.ReviewCard) error
}

// ReviewLog is the append-only record of review events. Zero bounds in
// Reviews leave that side of the range open.
type ReviewLog interface {
	AppendReview(ctx context.Context, userID string, ev domain.ReviewEvent) error
	Reviews(ctx context.Context, userID string, from, to time.Time) ([]domain.ReviewEvent, error)
}

// Service coordinates the scheduler with storage.
type Service struct {
	cards     CardStore
	reviews   ReviewLog
	scheduler *srs.Scheduler
	metrics   *metrics.Collector
	days      int
	locks     *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records review and analytics metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithAnalyticsWindow sets the default report window in days.
func WithAnalyticsWindow(days int) Option {
	return func(s *Service) { s.days = days }
}

// New builds a Service over the card store and review log. Reports use a
// DefaultWindowDays window unless WithAnalyticsWindow says otherwise.
func New(cards CardStore, reviews ReviewLog, scheduler *srs.Scheduler, opts ...Option) *Service {
	s := &Service{
		cards:     cards,
		reviews:   reviews,
		scheduler: scheduler,
		days:      analytics.DefaultWindowDays,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Review applies outcome to the user's card and persists both the updated
// card and the review event. Reviews of the same card are applied one at a
// time, in arrival order.
func (s *Service) Review(ctx context.Context, userID, cardID string, outcome domain.Outcome) (domain.ReviewCard, error) {
	logger := logging.From(ctx).With("user_id", userID, "card_id", cardID)

	unlock := s.locks.Lock(userID + "/" + cardID)
	defer unlock()

	card, err := s.cards.FindCard(ctx, userID, cardID)
	if err != nil {
		s.reject(err)
		return domain.ReviewCard{}, err
	}

	now := clock.Now(ctx)
	updated, err := s.scheduler.ProcessReview(card, outcome, now)
	if err != nil {
		s.reject(err)
		logger.Warn("review rejected", logging.ErrAttr(err))
		return domain.ReviewCard{}, err
	}

	if err := s.cards.SaveCard(ctx, updated); err != nil {
		return domain.ReviewCard{}, goerr.Wrap(err, "failed to save reviewed card", goerr.V("card_id", cardID))
	}
	if err := s.reviews.AppendReview(ctx, userID, reviewEvent(cardID, outcome, now)); err != nil {
		return domain.ReviewCard{}, goerr.Wrap(err, "failed to record review", goerr.V("card_id", cardID))
	}

	lapsed := updated.Performance.Lapses > card.Performance.Lapses
	graduated := updated.Graduated && !card.Graduated
	if s.metrics != nil {
		s.metrics.ObserveReview(updated.LearningState.String(), outcome.Passed(), lapsed, graduated)
	}
	logger.Info("review applied",
		"quality", outcome.Quality,
		"passed", outcome.Passed(),
		"state", updated.LearningState,
		"interval_days", updated.Memory.Interval,
		"next_review", updated.Memory.NextReview,
	)
	return updated, nil
}

// reviewEvent builds the logged event. A failed outcome is never logged with
// a passing quality, so the log agrees with what the scheduler applied.
func reviewEvent(cardID string, outcome domain.Outcome, at time.Time) domain.ReviewEvent {
	quality := outcome.Quality
	if !outcome.Passed() && quality >= domain.PassingQuality {
		quality = domain.PassingQuality - 1
	}
	return domain.ReviewEvent{
		CardID:       cardID,
		ReviewedAt:   at,
		Quality:      quality,
		ResponseTime: outcome.ResponseTime,
	}
}

func (s *Service) reject(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case domain.IsValidation(err):
		s.metrics.RejectReview("validation")
	case domain.IsNotFound(err):
		s.metrics.RejectReview("not_found")
	default:
		s.metrics.RejectReview("error")
	}
}

// Due returns the user's due cards in review order. limit <= 0 means all.
func (s *Service) Due(ctx context.Context, userID string, limit int) ([]domain.ReviewCard, error) {
	cards, err := s.cards.LoadCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	return srs.DueCards(cards, clock.Now(ctx), limit), nil
}

// CardView is a card together with its strength right now.
type CardView struct {
	Card            domain.ReviewCard `json:"card"`
	CurrentStrength float64           `json:"current_strength"`
	Due             bool              `json:"due"`
}

// Card returns one card with its decayed strength.
func (s *Service) Card(ctx context.Context, userID, cardID string) (CardView, error) {
	card, err := s.cards.FindCard(ctx, userID, cardID)
	if err != nil {
		return CardView{}, err
	}
	now := clock.Now(ctx)
	return CardView{
		Card:            card,
		CurrentStrength: srs.CurrentStrength(card, now),
		Due:             srs.IsDue(card, now),
	}, nil
}

// Preview shows what each quality would do to the card, without saving.
func (s *Service) Preview(ctx context.Context, userID, cardID string) ([]srs.PreviewEntry, error) {
	card, err := s.cards.FindCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	return s.scheduler.Preview(card, clock.Now(ctx))
}

// ReportOptions selects the report window. Zero Days means the service
// default.
type ReportOptions struct {
	Days               int
	IncludeProjections bool
}

// Performance builds the analytics report for the user from all of their
// cards and their full review history. Calendar days are cut in the
// context's clock.Timezone.
func (s *Service) Performance(ctx context.Context, userID string, opts ReportOptions) (analytics.Report, error) {
	started := time.Now()

	cards, err := s.cards.LoadCards(ctx, userID)
	if err != nil {
		return analytics.Report{}, err
	}
	events, err := s.reviews.Reviews(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return analytics.Report{}, err
	}

	days := opts.Days
	if days <= 0 {
		days = s.days
	}
	report := analytics.CalculateUserPerformance(cards, events, analytics.Options{
		Days:               days,
		IncludeProjections: opts.IncludeProjections,
		CurrentTime:        clock.Now(ctx),
		Location:           clock.Timezone(ctx),
	})

	if s.metrics != nil {
		s.metrics.ObserveAnalytics(time.Since(started))
	}
	return report, nil
}

// RebuildResult summarizes a Rebuild run.
type RebuildResult struct {
	Rebuilt int `json:"rebuilt"`
	// Skipped cards were reviewed while the rebuild ran and keep their state.
	Skipped int `json:"skipped"`
	// Orphaned events reference cards the user no longer has.
	Orphaned int `json:"orphaned"`
}

// Rebuild recomputes the scheduling state of every reviewed card of the
// user by replaying its review log through the current scheduler. Content,
// suspension and item identity are kept. Use it after changing scheduler
// parameters.
func (s *Service) Rebuild(ctx context.Context, userID string) (RebuildResult, error) {
	logger := logging.From(ctx).With("user_id", userID)

	cards, err := s.cards.LoadCards(ctx, userID)
	if err != nil {
		return RebuildResult{}, err
	}
	events, err := s.reviews.Reviews(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return RebuildResult{}, err
	}

	var res RebuildResult
	set := domain.NewCardSet(cards)
	byCard := make(map[string][]domain.ReviewEvent)
	for _, ev := range events {
		if _, err := set.Find(ev.CardID); err != nil {
			res.Orphaned++
			continue
		}
		byCard[ev.CardID] = append(byCard[ev.CardID], ev)
	}

	for _, card := range set.Cards() {
		history := byCard[card.ID]
		if len(history) == 0 {
			continue
		}
		_, skipped, err := s.rebuildCard(ctx, card, history)
		if err != nil {
			return res, err
		}
		if skipped {
			res.Skipped++
			continue
		}
		res.Rebuilt++
	}

	logger.Info("cards rebuilt", "rebuilt", res.Rebuilt, "skipped", res.Skipped, "orphaned", res.Orphaned)
	return res, nil
}

func (s *Service) rebuildCard(ctx context.Context, snapshot domain.ReviewCard, history []domain.ReviewEvent) (domain.ReviewCard, bool, error) {
	unlock := s.locks.Lock(snapshot.UserID + "/" + snapshot.ID)
	defer unlock()

	current, err := s.cards.FindCard(ctx, snapshot.UserID, snapshot.ID)
	if err != nil {
		return domain.ReviewCard{}, false, err
	}
	if current.Memory.ReviewCount != snapshot.Memory.ReviewCount {
		return current, true, nil
	}

	fresh := domain.NewReviewCard(current.ID, current.UserID, current.Content, history[0].ReviewedAt)
	fresh.ItemHash = current.ItemHash
	fresh.Suspended = current.Suspended

	rebuilt, err := s.scheduler.Replay(fresh, history)
	if err != nil {
		return domain.ReviewCard{}, false, err
	}
	if err := s.cards.SaveCard(ctx, rebuilt); err != nil {
		return domain.ReviewCard{}, false, goerr.Wrap(err, "failed to save rebuilt card", goerr.V("card_id", current.ID))
	}
	return rebuilt, false, nil
}
