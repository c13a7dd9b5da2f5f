package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/m-mizutani/goerr/v2"
)

// Source kinds.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source is where a user's deck comes from, either a local path or a Git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	UserID      string
	LastScanned sql.NullTime
}

// InsertSource registers a new source for the user and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType, userID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type, user_id)
		VALUES (?, ?, ?)
	`, path, sourceType, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to insert source", goerr.V("path", path), goerr.T(domain.TagStorage))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get last insert ID for source", goerr.V("path", path), goerr.T(domain.TagStorage))
	}
	return id, nil
}

// FindSourceByPath retrieves the user's source registered at path. It
// returns nil when the user has no such source.
func (db *DB) FindSourceByPath(ctx context.Context, path, userID string) (*Source, error) {
	var s Source
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, user_id, last_scanned
		FROM sources WHERE path = ? AND user_id = ?
	`, path, userID)

	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.UserID, &s.LastScanned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to find source by path", goerr.V("path", path), goerr.T(domain.TagStorage))
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, type, user_id, last_scanned
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get all sources", goerr.T(domain.TagStorage))
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.UserID, &s.LastScanned); err != nil {
			return nil, goerr.Wrap(err, "failed to scan source row", goerr.T(domain.TagStorage))
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate source rows", goerr.T(domain.TagStorage))
	}
	return sources, nil
}

// UpdateSourceLastScanned records when a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC(), sourceID)
	if err != nil {
		return goerr.Wrap(err, "failed to update last scanned for source", goerr.V("source_id", sourceID), goerr.T(domain.TagStorage))
	}
	return nil
}

// DeleteSource unregisters a source. Its cards are kept, detached and
// suspended, so their review history survives.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction", goerr.T(domain.TagStorage))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET suspended = 1, source_id = NULL WHERE source_id = ?
	`, sourceID); err != nil {
		return goerr.Wrap(err, "failed to detach cards from source", goerr.V("source_id", sourceID), goerr.T(domain.TagStorage))
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, sourceID)
	if err != nil {
		return goerr.Wrap(err, "failed to delete source", goerr.V("source_id", sourceID), goerr.T(domain.TagStorage))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerr.New("source not found", goerr.V("source_id", sourceID), goerr.T(domain.TagNotFound))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit source deletion", goerr.T(domain.TagStorage))
	}
	return nil
}
