package storage

const schema = `
-- One row per (user, item). Rows are never deleted, only suspended.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    item_hash TEXT NOT NULL,
    source_text TEXT NOT NULL,
    target_text TEXT NOT NULL,
    pattern TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 0,
    strength REAL NOT NULL DEFAULT 0,
    ease_factor REAL NOT NULL,
    stability_factor REAL NOT NULL,
    interval_days REAL NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    last_reviewed DATETIME,
    next_review DATETIME NOT NULL,
    streak INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    learning_state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    graduated INTEGER NOT NULL DEFAULT 0,
    suspended INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,

    UNIQUE(user_id, item_hash),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_user_next_review ON cards(user_id, next_review);

-- Append-only review log.
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL, -- unix nanoseconds, UTC
    quality INTEGER NOT NULL,
    response_time_ms INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_reviews_user_time ON reviews(user_id, reviewed_at);

-- Where decks come from: a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    user_id TEXT NOT NULL,
    last_scanned DATETIME,

    UNIQUE(path, user_id)
);
`
