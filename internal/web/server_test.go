package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conorfennell/recall/internal/analytics"
	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/metrics"
	"github.com/conorfennell/recall/internal/srs"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/study"
	"github.com/conorfennell/recall/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *Server
	syncer  *sync.Syncer
	deckDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sched, err := srs.NewScheduler(srs.DefaultParams())
	require.NoError(t, err)

	m := metrics.NewCollector("recall")
	syncer := sync.New(db, filepath.Join(t.TempDir(), "repos"))
	svc := study.New(db, db, sched, study.WithMetrics(m))

	deckDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deckDir, "deck.md"),
		[]byte("Q: gato\nA: cat\n---\nQ: perro\nA: dog\n"), 0o600))

	return testEnv{
		server:  NewServer(svc, WithDecks(syncer), WithMetrics(m), WithAllowedOrigins([]string{"https://app.example"})),
		syncer:  syncer,
		deckDir: deckDir,
	}
}

func (e testEnv) importDeck(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	src, err := e.syncer.AddSource(ctx, e.deckDir, userID)
	require.NoError(t, err)
	_, err = e.syncer.SyncSource(ctx, *src)
	require.NoError(t, err)
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	env.importDeck(t, "u1")

	rec := env.do(t, http.MethodGet, "/api/users/u1/due", "")
	require.Equal(t, http.StatusOK, rec.Code)
	due := decode[[]domain.ReviewCard](t, rec)
	require.Len(t, due, 2)
	cardID := due[0].ID

	rec = env.do(t, http.MethodGet, "/api/users/u1/due?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.ReviewCard](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/users/u1/cards/"+cardID+"/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]srs.PreviewEntry](t, rec), 6)

	rec = env.do(t, http.MethodPost, "/api/users/u1/cards/"+cardID+"/reviews",
		`{"is_correct":true,"quality":4,"response_time":1800,"difficulty":"medium"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	card := decode[domain.ReviewCard](t, rec)
	assert.Equal(t, domain.Learning, card.LearningState)
	assert.Equal(t, 1, card.Memory.ReviewCount)

	rec = env.do(t, http.MethodGet, "/api/users/u1/cards/"+cardID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[study.CardView](t, rec)
	assert.Equal(t, 1, view.Card.Memory.ReviewCount)
	assert.False(t, view.Due)
	assert.Greater(t, view.CurrentStrength, 0.0)

	rec = env.do(t, http.MethodGet, "/api/users/u1/analytics?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[analytics.Report](t, rec)
	assert.Equal(t, 7, report.WindowDays)
	assert.Len(t, report.Trends, 7)
	assert.Equal(t, 1, report.Basic.TotalReviews)
	assert.NotNil(t, report.Projection)

	rec = env.do(t, http.MethodGet, "/api/users/u1/analytics?projections=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[analytics.Report](t, rec).Projection)

	rec = env.do(t, http.MethodPost, "/api/users/u1/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, study.RebuildResult{Rebuilt: 1}, decode[study.RebuildResult](t, rec))
}

func TestAnalyticsWindowCap(t *testing.T) {
	env := newTestEnv(t)
	env.importDeck(t, "u1")

	rec := env.do(t, http.MethodGet, "/api/users/u1/analytics?days=365", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[analytics.Report](t, rec).Trends, analytics.MaxWindowDays)
}

func TestErrors(t *testing.T) {
	env := newTestEnv(t)
	env.importDeck(t, "u1")

	rec := env.do(t, http.MethodGet, "/api/users/u1/due", "")
	cardID := decode[[]domain.ReviewCard](t, rec)[0].ID

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "quality out of range", method: http.MethodPost, path: "/api/users/u1/cards/" + cardID + "/reviews", body: `{"is_correct":true,"quality":9}`, status: http.StatusBadRequest},
		{name: "unknown difficulty", method: http.MethodPost, path: "/api/users/u1/cards/" + cardID + "/reviews", body: `{"is_correct":true,"quality":4,"difficulty":"brutal"}`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/api/users/u1/cards/" + cardID + "/reviews", body: `{"grade":4}`, status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/users/u1/cards/" + cardID + "/reviews", body: `{`, status: http.StatusBadRequest},
		{name: "unknown card", method: http.MethodPost, path: "/api/users/u1/cards/nope/reviews", body: `{"is_correct":true,"quality":4}`, status: http.StatusNotFound},
		{name: "other user's card", method: http.MethodGet, path: "/api/users/u2/cards/" + cardID, status: http.StatusNotFound},
		{name: "bad limit", method: http.MethodGet, path: "/api/users/u1/due?limit=abc", status: http.StatusBadRequest},
		{name: "bad days", method: http.MethodGet, path: "/api/users/u1/analytics?days=-3", status: http.StatusBadRequest},
		{name: "days beyond the window cap", method: http.MethodGet, path: "/api/users/u1/analytics?days=400000", status: http.StatusBadRequest},
		{name: "days at max int", method: http.MethodGet, path: "/api/users/u1/analytics?days=9223372036854775807", status: http.StatusBadRequest},
		{name: "bad projections", method: http.MethodGet, path: "/api/users/u1/analytics?projections=maybe", status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decode[errorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
		})
	}

	// rejected reviews leave the card untouched
	rec = env.do(t, http.MethodGet, "/api/users/u1/cards/"+cardID, "")
	assert.Equal(t, 0, decode[study.CardView](t, rec).Card.Memory.ReviewCount)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sources", `{"path":"`+env.deckDir+`","user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sourceView](t, rec)
	assert.Equal(t, storage.SourceLocal, created.Type)

	rec = env.do(t, http.MethodPost, "/api/sources", `{"path":"","user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sources", `{"path":"https://evil.example/../../../tmp/owned.git","user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[sync.Result](t, rec)
	assert.Equal(t, 2, res.Created)

	rec = env.do(t, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decode[[]sourceView](t, rec)
	require.Len(t, sources, 1)
	assert.NotNil(t, sources[0].LastScanned)

	path := "/api/sources/" + jsonNumber(created.ID)
	rec = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/sources/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `recall_http_requests_total{method="GET",route="/healthz",status="200"} 1`), body)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/u1/due", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
