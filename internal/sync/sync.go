package sync

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/clock"
	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/gitsource"
	"github.com/conorfennell/recall/internal/knol"
	"github.com/conorfennell/recall/internal/logging"
	"github.com/conorfennell/recall/internal/parser"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Result summarizes one reconciliation.
type Result struct {
	Parsed    int `json:"parsed"`
	Created   int `json:"created"`
	Resumed   int `json:"resumed"`
	Suspended int `json:"suspended"`
	Errors    int `json:"errors"`
}

func (r *Result) add(o Result) {
	r.Parsed += o.Parsed
	r.Created += o.Created
	r.Resumed += o.Resumed
	r.Suspended += o.Suspended
	r.Errors += o.Errors
}

// Syncer imports deck sources into a user's card store.
type Syncer struct {
	db       *storage.DB
	reposDir string
	progress io.Writer
}

// New creates a Syncer that checks git sources out under reposDir.
func New(db *storage.DB, reposDir string) *Syncer {
	return &Syncer{db: db, reposDir: reposDir}
}

// WithProgress sends git clone and pull progress to w.
func (s *Syncer) WithProgress(w io.Writer) *Syncer {
	s.progress = w
	return s
}

// AddSource registers a local directory or git URL for userID.
func (s *Syncer) AddSource(ctx context.Context, path, userID string) (*storage.Source, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, goerr.New("user id is required", goerr.T(domain.TagValidation))
	}

	sourceType := storage.SourceGit
	if gitsource.IsRemote(path) {
		if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
			return nil, err
		}
	} else {
		sourceType = storage.SourceLocal
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve source path", goerr.V("path", path), goerr.T(domain.TagValidation))
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, goerr.New("source path is not a directory", goerr.V("path", abs), goerr.T(domain.TagValidation))
		}
		path = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, path, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, goerr.New("source already exists", goerr.V("path", path), goerr.T(domain.TagValidation))
	}

	id, err := s.db.InsertSource(ctx, path, sourceType, userID)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Info("source added", "id", id, "type", sourceType, "path", path, "user_id", userID)
	return &storage.Source{ID: id, Path: path, Type: sourceType, UserID: userID}, nil
}

// RunSync iterates over all sources and reconciles them. A source that
// fails is logged and skipped; the others still run.
func (s *Syncer) RunSync(ctx context.Context) (Result, error) {
	logger := logging.From(ctx)
	logger.Info("starting sync process for all sources")

	var total Result
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return total, err
	}

	if len(sources) == 0 {
		logger.Info("no sources configured, add one with the add-source command")
		return total, nil
	}

	for _, source := range sources {
		res, err := s.SyncSource(ctx, source)
		if err != nil {
			logger.Error("failed to sync source", "id", source.ID, "path", source.Path, logging.ErrAttr(err))
			total.Errors++
			continue
		}
		total.add(res)
	}
	logger.Info("sync process complete",
		"parsed", total.Parsed,
		"created", total.Created,
		"resumed", total.Resumed,
		"suspended", total.Suspended,
		"errors", total.Errors,
	)
	return total, nil
}

// SyncSource fetches one source when it is a git repository and reconciles
// its decks.
func (s *Syncer) SyncSource(ctx context.Context, source storage.Source) (Result, error) {
	logging.From(ctx).Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

	dir := source.Path
	if source.Type == storage.SourceGit {
		if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
			return Result{}, goerr.Wrap(err, "failed to create repos directory", goerr.V("dir", s.reposDir))
		}
		localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return Result{}, err
		}
		if err := gitsource.Sync(ctx, source.Path, localRepoPath, s.progress); err != nil {
			return Result{}, err
		}
		dir = localRepoPath
	}

	return s.Reconcile(ctx, source, dir)
}

// Reconcile walks dir for markdown decks and brings the source owner's
// cards in line: a NEW card for every unseen item, resumption for items
// that came back, and suspension for items that disappeared. Cards are
// never deleted, so review history survives deck edits.
func (s *Syncer) Reconcile(ctx context.Context, source storage.Source, dir string) (Result, error) {
	logger := logging.From(ctx)
	now := clock.Now(ctx)

	var res Result
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		items, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			logger.Warn("skipping deck file", "path", path, logging.ErrAttr(parseErr))
			res.Errors++
			return nil
		}

		for _, content := range items {
			res.Parsed++
			hash := knol.Hash(content)
			if found[hash] {
				continue
			}
			found[hash] = true

			if err := s.upsertItem(ctx, source, content, hash, now, &res); err != nil {
				logger.Warn("failed to import item", "hash", hash, logging.ErrAttr(err))
				res.Errors++
			}
		}
		return nil
	})
	if walkErr != nil {
		return res, goerr.Wrap(walkErr, "failed to walk source directory", goerr.V("path", dir))
	}

	cards, err := s.db.CardsBySourceID(ctx, source.ID)
	if err != nil {
		return res, err
	}

	for _, card := range cards {
		if found[card.ItemHash] || card.Suspended {
			continue
		}
		logger.Info("orphaned card, suspending", "card_id", card.ID, "hash", card.ItemHash)
		if err := s.db.SetSuspended(ctx, card.ID, true); err != nil {
			logger.Warn("failed to suspend orphaned card", "card_id", card.ID, logging.ErrAttr(err))
			res.Errors++
			continue
		}
		res.Suspended++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, now); err != nil {
		logger.Warn("failed to update last scanned for source", "source_id", source.ID, logging.ErrAttr(err))
	}

	logger.Info("reconciliation complete",
		"path", dir,
		"parsed", res.Parsed,
		"created", res.Created,
		"resumed", res.Resumed,
		"suspended", res.Suspended,
		"errors", res.Errors,
	)
	return res, nil
}

func (s *Syncer) upsertItem(ctx context.Context, source storage.Source, content domain.Content, hash string, now time.Time, res *Result) error {
	existing, ok, err := s.db.FindCardByItem(ctx, source.UserID, hash)
	if err != nil {
		return err
	}
	if !ok {
		card := domain.NewReviewCard(knol.CardID(source.UserID, hash), source.UserID, content, now)
		card.ItemHash = hash
		if err := s.db.InsertCard(ctx, card, source.ID); err != nil {
			return err
		}
		logging.From(ctx).Debug("new card inserted", "card_id", card.ID, "hash", hash)
		res.Created++
		return nil
	}

	if existing.Suspended {
		if err := s.db.ResumeCard(ctx, existing.ID, source.ID); err != nil {
			return err
		}
		res.Resumed++
	}
	return nil
}

// Sources lists every registered source.
func (s *Syncer) Sources(ctx context.Context) ([]storage.Source, error) {
	return s.db.GetAllSources(ctx)
}

// RemoveSource unregisters a source. Its cards stay, suspended.
func (s *Syncer) RemoveSource(ctx context.Context, sourceID int64) error {
	if err := s.db.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	logging.From(ctx).Info("source removed", "id", sourceID)
	return nil
}
