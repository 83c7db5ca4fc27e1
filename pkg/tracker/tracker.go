// Package tracker records calls to external APIs (PubMed, the generation
// model) for latency analysis and budget enforcement.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

// Tracker records and queries external API usage.
type Tracker interface {
	// Record stores one API call.
	Record(ctx context.Context, rec models.APICallRecord) error
	// TotalTokens returns tokens spent against an API since a given time.
	TotalTokens(ctx context.Context, apiName string, since time.Time) (int64, error)
	// Summary returns aggregated call stats, optionally filtered by API name.
	Summary(ctx context.Context, apiName string) ([]models.APICallSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS api_call_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	api_name TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_api_calls_name_time ON api_call_log(api_name, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}
	return &SQLiteTracker{db: db}, nil
}

// Record stores one API call.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.APICallRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO api_call_log (api_name, endpoint, status_code, latency_ms, tokens_used, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.APIName, rec.Endpoint, rec.StatusCode, rec.LatencyMs, rec.TokensUsed, rec.CostUSD, created,
	)
	if err != nil {
		return fmt.Errorf("record api call: %w", err)
	}
	return nil
}

// TotalTokens returns tokens spent against an API since a given time.
func (t *SQLiteTracker) TotalTokens(ctx context.Context, apiName string, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(tokens_used), 0) FROM api_call_log WHERE api_name = ? AND created_at >= ?`,
		apiName, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total tokens: %w", err)
	}
	return total, nil
}

// Summary returns aggregated call stats grouped by API name.
func (t *SQLiteTracker) Summary(ctx context.Context, apiName string) ([]models.APICallSummary, error) {
	query := `SELECT api_name, COUNT(*),
		SUM(CASE WHEN status_code >= 400 OR status_code = 0 THEN 1 ELSE 0 END),
		AVG(latency_ms), SUM(tokens_used), SUM(cost_usd)
		FROM api_call_log`
	var args []any
	if apiName != "" {
		query += ` WHERE api_name = ?`
		args = append(args, apiName)
	}
	query += ` GROUP BY api_name ORDER BY api_name`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.APICallSummary
	for rows.Next() {
		var s models.APICallSummary
		if err := rows.Scan(&s.APIName, &s.CallCount, &s.ErrorCount, &s.AvgLatencyMs, &s.TotalTokens, &s.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
