package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/analytics"
	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/study"
	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQuery(r, "limit", 0)
		if err != nil {
			handleError(w, r, err)
			return
		}
		cards, err := s.study.Due(r.Context(), chi.URLParam(r, "userID"), limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if cards == nil {
			cards = []domain.ReviewCard{}
		}
		writeJSON(w, r, http.StatusOK, cards)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.study.Card(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "cardID"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, view)
	}
}

func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var outcome domain.Outcome
		if err := decodeBody(w, r, &outcome); err != nil {
			handleError(w, r, err)
			return
		}
		card, err := s.study.Review(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "cardID"), outcome)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, card)
	}
}

func (s *Server) handleGetPreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.study.Preview(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "cardID"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entries)
	}
}

func (s *Server) handleGetAnalytics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := intQuery(r, "days", 0)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if days > analytics.MaxWindowDays {
			handleError(w, r, goerr.New("days exceeds the maximum window",
				goerr.V("days", days), goerr.V("max", analytics.MaxWindowDays), goerr.T(domain.TagValidation)))
			return
		}
		projections := true
		if raw := r.URL.Query().Get("projections"); raw != "" {
			projections, err = strconv.ParseBool(raw)
			if err != nil {
				handleError(w, r, goerr.Wrap(err, "invalid projections parameter", goerr.V("value", raw), goerr.T(domain.TagValidation)))
				return
			}
		}

		report, err := s.study.Performance(r.Context(), chi.URLParam(r, "userID"), study.ReportOptions{
			Days:               days,
			IncludeProjections: projections,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

// handlePostRebuild replays the user's review log into their cards.
func (s *Server) handlePostRebuild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.study.Rebuild(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

type sourceView struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	UserID      string     `json:"user_id"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

func newSourceView(src storage.Source) sourceView {
	v := sourceView{ID: src.ID, Path: src.Path, Type: src.Type, UserID: src.UserID}
	if src.LastScanned.Valid {
		t := src.LastScanned.Time
		v.LastScanned = &t
	}
	return v
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.decks.Sources(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		views := make([]sourceView, 0, len(sources))
		for _, src := range sources {
			views = append(views, newSourceView(src))
		}
		writeJSON(w, r, http.StatusOK, views)
	}
}

type addSourceRequest struct {
	Path   string `json:"path"`
	UserID string `json:"user_id"`
}

func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSourceRequest
		if err := decodeBody(w, r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			handleError(w, r, goerr.New("path is required", goerr.T(domain.TagValidation)))
			return
		}
		src, err := s.decks.AddSource(r.Context(), req.Path, req.UserID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, newSourceView(*src))
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "sourceID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			handleError(w, r, goerr.Wrap(err, "invalid source id", goerr.V("value", raw), goerr.T(domain.TagValidation)))
			return
		}
		if err := s.decks.RemoveSource(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync reconciles every source and reports what changed.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.decks.RunSync(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if s.metrics != nil {
			s.metrics.ObserveSync(res.Created, res.Suspended)
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, goerr.New("invalid query parameter", goerr.V("name", name), goerr.V("value", raw), goerr.T(domain.TagValidation))
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(err, "invalid request body", goerr.T(domain.TagValidation))
	}
	return nil
}
