package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tracker_test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndTotalTokens(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	for _, tokens := range []int64{100, 250} {
		err := tr.Record(ctx, models.APICallRecord{
			APIName: "generation", Endpoint: "chat/completions",
			StatusCode: 200, LatencyMs: 900, TokensUsed: tokens,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	// Different API, must not count.
	_ = tr.Record(ctx, models.APICallRecord{
		APIName: "pubmed", Endpoint: "esearch.fcgi", StatusCode: 200, LatencyMs: 200,
	})

	total, err := tr.TotalTokens(ctx, "generation", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 350 {
		t.Errorf("expected 350 tokens, got %d", total)
	}
}

func TestTotalTokensWindow(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	err := tr.Record(ctx, models.APICallRecord{
		APIName: "generation", Endpoint: "chat/completions",
		StatusCode: 200, TokensUsed: 500,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	total, err := tr.TotalTokens(ctx, "generation", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("calls outside the window should not count, got %d", total)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	_ = tr.Record(ctx, models.APICallRecord{APIName: "pubmed", Endpoint: "esearch.fcgi", StatusCode: 200, LatencyMs: 100})
	_ = tr.Record(ctx, models.APICallRecord{APIName: "pubmed", Endpoint: "efetch.fcgi", StatusCode: 500, LatencyMs: 300})
	_ = tr.Record(ctx, models.APICallRecord{APIName: "generation", Endpoint: "chat/completions", StatusCode: 200, LatencyMs: 800, TokensUsed: 400, CostUSD: 0.02})

	summaries, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 APIs, got %d", len(summaries))
	}

	// Ordered by api_name: generation first.
	gen := summaries[0]
	if gen.APIName != "generation" || gen.CallCount != 1 || gen.TotalTokens != 400 {
		t.Errorf("unexpected generation summary: %+v", gen)
	}

	pm := summaries[1]
	if pm.APIName != "pubmed" || pm.CallCount != 2 || pm.ErrorCount != 1 {
		t.Errorf("unexpected pubmed summary: %+v", pm)
	}
	if pm.AvgLatencyMs != 200 {
		t.Errorf("expected avg latency 200, got %v", pm.AvgLatencyMs)
	}

	filtered, err := tr.Summary(ctx, "pubmed")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].APIName != "pubmed" {
		t.Errorf("unexpected filtered summary: %+v", filtered)
	}
}
