package srs

import (
	"sort"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// IsDue reports whether the card should be shown at now.
func IsDue(card domain.ReviewCard, now time.Time) bool {
	return !card.Suspended && !card.Memory.NextReview.After(now)
}

// DueCards returns the due cards, most overdue first. Ties go to the card
// with the lower current strength, then to the lower id. A limit of zero or
// less returns every due card.
func DueCards(cards []domain.ReviewCard, now time.Time, limit int) []domain.ReviewCard {
	type ranked struct {
		card     domain.ReviewCard
		strength float64
	}

	var due []ranked
	for _, c := range cards {
		if IsDue(c, now) {
			due = append(due, ranked{card: c, strength: CurrentStrength(c, now)})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.card.Memory.NextReview.Equal(b.card.Memory.NextReview) {
			return a.card.Memory.NextReview.Before(b.card.Memory.NextReview)
		}
		if a.strength != b.strength {
			return a.strength < b.strength
		}
		return a.card.ID < b.card.ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.ReviewCard, len(due))
	for i, r := range due {
		out[i] = r.card
	}
	return out
}
