package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/pipeline"
)

type stubCache struct {
	hit *models.CacheHit
}

func (s *stubCache) Lookup(ctx context.Context, rawQuery string) (*models.CacheHit, error) {
	return s.hit, nil
}

func (s *stubCache) Insert(ctx context.Context, rawQuery, responseText string, citedPaperIDs []int64) (int64, error) {
	return 1, nil
}

func (s *stubCache) RecordMiss(ctx context.Context, rawQuery string) (int64, error) {
	return 1, nil
}

type stubSearcher struct {
	papers []models.Paper
}

func (s *stubSearcher) Search(ctx context.Context, term string, max int) ([]models.Paper, error) {
	return s.papers, nil
}

type stubRepo struct{}

func (stubRepo) SaveBatch(ctx context.Context, list []models.Paper) ([]int64, error) {
	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}
func (stubRepo) Search(ctx context.Context, kws []string, limit int) ([]models.Paper, error) {
	return nil, nil
}
func (stubRepo) GetMany(ctx context.Context, ids []int64) ([]models.Paper, error) { return nil, nil }
func (stubRepo) Touch(ctx context.Context, ids []int64) error                     { return nil }

type stubGen struct{}

func (stubGen) Generate(ctx context.Context, question string, papers []models.Paper, detail models.DetailLevel) (string, int64, error) {
	return "generated answer", 100, nil
}

type stubSweeper struct {
	gotOpts models.SweepOptions
	err     error
}

func (s *stubSweeper) Sweep(ctx context.Context, opts models.SweepOptions) (models.SweepReport, error) {
	s.gotOpts = opts
	return models.SweepReport{EvictedResponses: 2, Promoted: 1}, s.err
}

type stubStats struct {
	err error
}

func (s *stubStats) Stats(ctx context.Context) (models.CacheStats, error) {
	return models.CacheStats{Entries: 3, Queries: 10, Hits: 6, Misses: 4, HitRate: 0.6}, s.err
}

func newTestServer(t *testing.T, cache *stubCache, sweeper *stubSweeper, stats *stubStats) *Server {
	t.Helper()
	proc := pipeline.New(pipeline.Options{
		Cache:        cache,
		PubMed:       &stubSearcher{papers: []models.Paper{{PMID: "1", Title: "Creatine study", Abstract: "..."}}},
		Papers:       stubRepo{},
		Generator:    stubGen{},
		CacheEnabled: true,
	})
	return New(Options{
		Listen:    ":0",
		Processor: proc,
		Sweeper:   sweeper,
		Stats:     stats,
		SweepOpts: models.DefaultSweepOptions(),
	})
}

func TestHandleAsk(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"question": "benefits of creatine"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Text != "generated answer" {
		t.Errorf("unexpected answer: %+v", ans)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestHandleAskCacheHit(t *testing.T) {
	cache := &stubCache{hit: &models.CacheHit{Text: "cached", Similarity: 1.0, Exact: true}}
	srv := newTestServer(t, cache, &stubSweeper{}, &stubStats{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"question": "benefits of creatine", "detail": "brief"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if !ans.FromCache || ans.Text != "cached" {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func TestHandleAskValidation(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{})

	cases := []struct {
		name, body string
	}{
		{"empty body", `{}`},
		{"bad json", `{`},
		{"bad detail", `{"question": "q", "detail": "verbose"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestHandleAskNoPapers(t *testing.T) {
	proc := pipeline.New(pipeline.Options{
		Cache:        &stubCache{},
		PubMed:       &stubSearcher{},
		Papers:       stubRepo{},
		Generator:    stubGen{},
		CacheEnabled: true,
	})
	srv := New(Options{Processor: proc, Sweeper: &stubSweeper{}, Stats: &stubStats{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"question": "benefits of creatine"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when no papers found, got %d", w.Code)
	}
}

func TestHandleCacheStats(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats models.CacheStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 3 || stats.HitRate != 0.6 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleCacheStatsError(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{err: errors.New("db gone")})

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleSweep(t *testing.T) {
	sweeper := &stubSweeper{}
	srv := newTestServer(t, &stubCache{}, sweeper, &stubStats{})

	req := httptest.NewRequest(http.MethodPost, "/v1/maintenance/sweep",
		strings.NewReader(`{"age_threshold_days": 10}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if sweeper.gotOpts.AgeThresholdDays != 10 {
		t.Errorf("body override not applied: %+v", sweeper.gotOpts)
	}
	// Unset fields keep the configured defaults.
	if sweeper.gotOpts.UsageFloor != 5 {
		t.Errorf("expected default usage floor, got %d", sweeper.gotOpts.UsageFloor)
	}

	var report models.SweepReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.EvictedResponses != 2 || report.Promoted != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubCache{}, &stubSweeper{}, &stubStats{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
