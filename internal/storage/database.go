package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("dsn", dsn), goerr.T(domain.TagStorage))
	}

	if err := db.Ping(); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to database", goerr.V("dsn", dsn), goerr.T(domain.TagStorage))
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.T(domain.TagStorage))
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `
	id, user_id, item_hash, source_text, target_text, pattern, level,
	strength, ease_factor, stability_factor, interval_days, review_count,
	last_reviewed, next_review, streak, lapses, learning_state, graduated, suspended`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.ReviewCard, error) {
	var c domain.ReviewCard
	var lastReviewed sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.ItemHash,
		&c.Content.SourceText,
		&c.Content.TargetText,
		&c.Content.Pattern,
		&c.Content.Level,
		&c.Memory.Strength,
		&c.Memory.EaseFactor,
		&c.Memory.StabilityFactor,
		&c.Memory.Interval,
		&c.Memory.ReviewCount,
		&lastReviewed,
		&c.Memory.NextReview,
		&c.Performance.Streak,
		&c.Performance.Lapses,
		&c.LearningState,
		&c.Graduated,
		&c.Suspended,
	)
	if err != nil {
		return domain.ReviewCard{}, err
	}
	if lastReviewed.Valid {
		c.Memory.LastReviewed = lastReviewed.Time.UTC()
	}
	c.Memory.NextReview = c.Memory.NextReview.UTC()
	return c, nil
}

func cardArgs(c domain.ReviewCard) []any {
	var lastReviewed sql.NullTime
	if c.Memory.Reviewed() {
		lastReviewed = sql.NullTime{Time: c.Memory.LastReviewed.UTC(), Valid: true}
	}
	return []any{
		c.ID,
		c.UserID,
		c.ItemHash,
		c.Content.SourceText,
		c.Content.TargetText,
		c.Content.Pattern,
		c.Content.Level,
		c.Memory.Strength,
		c.Memory.EaseFactor,
		c.Memory.StabilityFactor,
		c.Memory.Interval,
		c.Memory.ReviewCount,
		lastReviewed,
		c.Memory.NextReview.UTC(),
		c.Performance.Streak,
		c.Performance.Lapses,
		int(c.LearningState),
		c.Graduated,
		c.Suspended,
	}
}

// InsertCard stores a freshly created card that belongs to a deck source.
func (db *DB) InsertCard(ctx context.Context, card domain.ReviewCard, sourceID int64) error {
	args := append(cardArgs(card), sourceID)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return goerr.Wrap(err, "failed to insert card", goerr.V("card_id", card.ID), goerr.T(domain.TagStorage))
	}
	return nil
}

// SaveCard writes the card's full state, inserting it when absent.
// The card's deck source is left untouched.
func (db *DB) SaveCard(ctx context.Context, card domain.ReviewCard) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strength = excluded.strength,
			ease_factor = excluded.ease_factor,
			stability_factor = excluded.stability_factor,
			interval_days = excluded.interval_days,
			review_count = excluded.review_count,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review,
			streak = excluded.streak,
			lapses = excluded.lapses,
			learning_state = excluded.learning_state,
			graduated = excluded.graduated,
			suspended = excluded.suspended
	`, cardArgs(card)...)
	if err != nil {
		return goerr.Wrap(err, "failed to save card", goerr.V("card_id", card.ID), goerr.T(domain.TagStorage))
	}
	return nil
}

// LoadCards returns every card of the user, suspended ones included.
func (db *DB) LoadCards(ctx context.Context, userID string) ([]domain.ReviewCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load cards", goerr.V("user_id", userID), goerr.T(domain.TagStorage))
	}
	return collectCards(rows)
}

// FindCard returns the user's card with the given id, or a not-found error.
func (db *DB) FindCard(ctx context.Context, userID, cardID string) (domain.ReviewCard, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = ? AND user_id = ?
	`, cardID, userID)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReviewCard{}, goerr.Wrap(domain.ErrCardNotFound(cardID), "failed to find card", goerr.V("user_id", userID))
		}
		return domain.ReviewCard{}, goerr.Wrap(err, "failed to find card", goerr.V("card_id", cardID), goerr.T(domain.TagStorage))
	}
	return card, nil
}

// FindCardByItem looks a card up by its owner and item hash.
// The boolean is false when no such card exists.
func (db *DB) FindCardByItem(ctx context.Context, userID, itemHash string) (domain.ReviewCard, bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND item_hash = ?
	`, userID, itemHash)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReviewCard{}, false, nil
		}
		return domain.ReviewCard{}, false, goerr.Wrap(err, "failed to find card by item", goerr.V("item_hash", itemHash), goerr.T(domain.TagStorage))
	}
	return card, true, nil
}

// CardsBySourceID retrieves all cards imported from a specific source.
func (db *DB) CardsBySourceID(ctx context.Context, sourceID int64) ([]domain.ReviewCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE source_id = ?
		ORDER BY id
	`, sourceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cards for source", goerr.V("source_id", sourceID), goerr.T(domain.TagStorage))
	}
	return collectCards(rows)
}

func collectCards(rows *sql.Rows) ([]domain.ReviewCard, error) {
	defer rows.Close()

	var cards []domain.ReviewCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan card row", goerr.T(domain.TagStorage))
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate card rows", goerr.T(domain.TagStorage))
	}
	return cards, nil
}

// SetSuspended suspends or resumes a card.
func (db *DB) SetSuspended(ctx context.Context, cardID string, suspended bool) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET suspended = ? WHERE id = ?
	`, suspended, cardID)
	if err != nil {
		return goerr.Wrap(err, "failed to update suspension", goerr.V("card_id", cardID), goerr.T(domain.TagStorage))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCardNotFound(cardID)
	}
	return nil
}

// ResumeCard lifts a card's suspension and attaches it to sourceID.
func (db *DB) ResumeCard(ctx context.Context, cardID string, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET suspended = 0, source_id = ? WHERE id = ?
	`, sourceID, cardID)
	if err != nil {
		return goerr.Wrap(err, "failed to resume card", goerr.V("card_id", cardID), goerr.T(domain.TagStorage))
	}
	return nil
}

// AppendReview adds one event to the user's review log.
func (db *DB) AppendReview(ctx context.Context, userID string, ev domain.ReviewEvent) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO reviews (card_id, user_id, reviewed_at, quality, response_time_ms)
		VALUES (?, ?, ?, ?, ?)
	`, ev.CardID, userID, ev.ReviewedAt.UnixNano(), ev.Quality, ev.ResponseTime)
	if err != nil {
		return goerr.Wrap(err, "failed to append review", goerr.V("card_id", ev.CardID), goerr.T(domain.TagStorage))
	}
	return nil
}

// Reviews returns the user's review events in [from, to], oldest first.
// A zero bound leaves that side of the range open.
func (db *DB) Reviews(ctx context.Context, userID string, from, to time.Time) ([]domain.ReviewEvent, error) {
	lower, upper := int64(math.MinInt64), int64(math.MaxInt64)
	if !from.IsZero() {
		lower = from.UnixNano()
	}
	if !to.IsZero() {
		upper = to.UnixNano()
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, reviewed_at, quality, response_time_ms
		FROM reviews
		WHERE user_id = ? AND reviewed_at BETWEEN ? AND ?
		ORDER BY reviewed_at, id
	`, userID, lower, upper)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get reviews", goerr.V("user_id", userID), goerr.T(domain.TagStorage))
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		var ev domain.ReviewEvent
		var reviewedAt int64
		if err := rows.Scan(&ev.CardID, &reviewedAt, &ev.Quality, &ev.ResponseTime); err != nil {
			return nil, goerr.Wrap(err, "failed to scan review row", goerr.T(domain.TagStorage))
		}
		ev.ReviewedAt = time.Unix(0, reviewedAt).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate review rows", goerr.T(domain.TagStorage))
	}
	return events, nil
}
