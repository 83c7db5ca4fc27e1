package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

func setup(t *testing.T) (tracker.Tracker, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget_test.db")
	tr, err := tracker.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr, context.Background()
}

func TestCheckUnderBudget(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.APICallRecord{
		APIName: "generation", Endpoint: "chat/completions", StatusCode: 200, TokensUsed: 150,
	})

	e := New([]models.BudgetPolicy{
		{APIName: "generation", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr)

	if err := e.Check(ctx, "generation"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckExceeded(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.APICallRecord{
		APIName: "generation", Endpoint: "chat/completions", StatusCode: 200, TokensUsed: 1100,
	})

	e := New([]models.BudgetPolicy{
		{APIName: "generation", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr)

	err := e.Check(ctx, "generation")
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCheckWildcardPolicy(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.APICallRecord{
		APIName: "pubmed", Endpoint: "esearch.fcgi", StatusCode: 200, TokensUsed: 600,
	})

	e := New([]models.BudgetPolicy{
		{APIName: "*", MaxTokens: 500, Period: models.BudgetDaily},
	}, tr)

	if err := e.Check(ctx, "pubmed"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("wildcard policy should apply to any API, got %v", err)
	}
	// The wildcard tracks each API's own spend.
	if err := e.Check(ctx, "generation"); err != nil {
		t.Errorf("generation has no recorded spend, got %v", err)
	}
}

func TestCheckNoPolicies(t *testing.T) {
	tr, ctx := setup(t)

	e := New(nil, tr)
	if err := e.Check(ctx, "generation"); err != nil {
		t.Errorf("no policies means no limit, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.APICallRecord{
		APIName: "generation", Endpoint: "chat/completions", StatusCode: 200, TokensUsed: 300,
	})

	e := New([]models.BudgetPolicy{
		{APIName: "generation", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr)

	statuses, err := e.Status(ctx, "generation")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].Used != 300 || statuses[0].Remaining != 700 {
		t.Errorf("unexpected status: %+v", statuses[0])
	}
}
