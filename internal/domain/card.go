package domain

import "time"

// Content is the studied item a card points at. It never changes once the
// card exists; an edited deck entry becomes a new item.
type Content struct {
	SourceText string `json:"source_text"`
	TargetText string `json:"target_text"`
	Pattern    string `json:"pattern,omitempty"`
	Level      int    `json:"level,omitempty"`
}

// Memory is the scheduling state of a card.
// Interval is measured in days and may be fractional while relearning.
type Memory struct {
	Strength        float64   `json:"strength"`
	EaseFactor      float64   `json:"ease_factor"`
	StabilityFactor float64   `json:"stability_factor"`
	Interval        float64   `json:"interval"`
	ReviewCount     int       `json:"review_count"`
	LastReviewed    time.Time `json:"last_reviewed"`
	NextReview      time.Time `json:"next_review"`
}

// Reviewed reports whether the card has been through at least one review.
func (m Memory) Reviewed() bool {
	return !m.LastReviewed.IsZero()
}

// Performance tracks recall history that is not part of the decay model.
type Performance struct {
	Streak int `json:"streak"`
	Lapses int `json:"lapses"`
}

// ReviewCard is one learner's memory state for one item.
type ReviewCard struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ItemHash      string        `json:"item_hash"`
	Content       Content       `json:"content"`
	Memory        Memory        `json:"memory"`
	Performance   Performance   `json:"performance"`
	LearningState LearningState `json:"learning_state"`
	Graduated     bool          `json:"graduated"`
	Suspended     bool          `json:"suspended"`
}

// Initial memory values for a card that has never been reviewed.
const (
	InitialEaseFactor      = 2.5
	InitialStabilityFactor = 1.0
	InitialInterval        = 1.0
)

// NewReviewCard creates a card in the New state, due immediately.
func NewReviewCard(id, userID string, content Content, now time.Time) ReviewCard {
	return ReviewCard{
		ID:      id,
		UserID:  userID,
		Content: content,
		Memory: Memory{
			EaseFactor:      InitialEaseFactor,
			StabilityFactor: InitialStabilityFactor,
			Interval:        InitialInterval,
			NextReview:      now,
		},
		LearningState: New,
	}
}

// ReviewEvent records a single review attempt. Events are append-only.
// Quality follows the 0-5 SM-2 scale; 3 and above counts as correct.
type ReviewEvent struct {
	CardID       string    `json:"card_id"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	Quality      int       `json:"quality"`
	ResponseTime int64     `json:"response_time"` // milliseconds
}

// PassingQuality is the lowest quality treated as a correct answer.
const PassingQuality = 3

// Correct reports whether the event counts as a successful recall.
func (e ReviewEvent) Correct() bool {
	return e.Quality >= PassingQuality
}
