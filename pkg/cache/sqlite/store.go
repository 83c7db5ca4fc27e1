// Package sqlite is the persistent response cache backed by SQLite.
//
// The store maps normalized query fingerprints to cached responses plus
// usage statistics and citation links. Fuzzy lookups scan the persisted
// normalized-query corpus in process; the corpus is bounded (thousands of
// entries, kept small by the eviction sweep), so a full scan stays well
// under per-request latency budgets.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fitfact-ai/fitfact/pkg/cache"
	"github.com/fitfact-ai/fitfact/pkg/models"
)

// maxCitations caps how many papers a single response links to.
const maxCitations = 5

// candidateLimit bounds the fuzzy-match scan, newest-served first.
const candidateLimit = 5000

const createSchema = `
CREATE TABLE IF NOT EXISTS user_queries (
	query_id INTEGER PRIMARY KEY AUTOINCREMENT,
	query_text TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	query_hash TEXT NOT NULL,
	cache_hit INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_queries_hash ON user_queries(query_hash);
CREATE INDEX IF NOT EXISTS idx_queries_normalized ON user_queries(normalized_text);

CREATE TABLE IF NOT EXISTS cached_responses (
	response_id INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id INTEGER NOT NULL REFERENCES user_queries(query_id),
	query_hash TEXT NOT NULL UNIQUE,
	normalized_text TEXT NOT NULL,
	response_text TEXT NOT NULL,
	response_hash TEXT NOT NULL,
	times_served INTEGER NOT NULL DEFAULT 0,
	last_served DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_responses_last_served ON cached_responses(last_served);

CREATE TABLE IF NOT EXISTS response_citations (
	response_id INTEGER NOT NULL REFERENCES cached_responses(response_id) ON DELETE CASCADE,
	paper_id INTEGER NOT NULL,
	citation_order INTEGER NOT NULL,
	relevance_rank INTEGER NOT NULL,
	PRIMARY KEY (response_id, paper_id)
);
`

// Options configures a Store.
type Options struct {
	// Threshold is the minimum fuzzy-match similarity. Zero means
	// cache.DefaultThreshold.
	Threshold float64
	// Synonyms overrides the default synonym rule set.
	Synonyms []cache.SynonymRule
	// Logger defaults to zap.NewNop.
	Logger *zap.Logger
}

// Store is the SQLite-backed query cache.
type Store struct {
	db         *sql.DB
	normalizer *cache.Normalizer
	threshold  float64
	logger     *zap.Logger
}

// New opens (or creates) the cache database and runs auto-migration.
func New(dbPath string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	if opts.Threshold <= 0 {
		opts.Threshold = cache.DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Store{
		db:         db,
		normalizer: cache.NewNormalizer(opts.Synonyms),
		threshold:  opts.Threshold,
		logger:     opts.Logger,
	}, nil
}

// Normalize exposes the store's canonical form of a raw query.
func (s *Store) Normalize(raw string) string {
	return s.normalizer.Normalize(raw)
}

// Lookup checks the cache for a raw query: exact fingerprint match first,
// fuzzy similarity scan second. On any hit the matched response's usage
// stats are updated and the hit is logged. Returns nil on a miss.
func (s *Store) Lookup(ctx context.Context, rawQuery string) (*models.CacheHit, error) {
	normalized := s.normalizer.Normalize(rawQuery)
	fp := cache.Fingerprint(normalized)

	resp, err := s.LookupExact(ctx, fp)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		if err := s.serve(ctx, resp.ID, rawQuery, normalized, fp); err != nil {
			return nil, err
		}
		return &models.CacheHit{
			ResponseID:    resp.ID,
			Text:          resp.Text,
			CitedPaperIDs: resp.CitedPaperIDs,
			Similarity:    1.0,
			Exact:         true,
		}, nil
	}

	return s.lookupFuzzy(ctx, rawQuery, normalized, fp, s.threshold)
}

// LookupExact returns the cached response for a fingerprint, or nil when
// absent. It does not touch usage stats, so diagnostics can peek at the
// cache without skewing serve counters.
func (s *Store) LookupExact(ctx context.Context, fingerprint string) (*models.CachedResponse, error) {
	var r models.CachedResponse
	err := s.db.QueryRowContext(ctx,
		`SELECT response_id, query_id, response_text, response_hash, times_served, last_served, created_at
		 FROM cached_responses WHERE query_hash = ?`,
		fingerprint,
	).Scan(&r.ID, &r.QueryID, &r.Text, &r.ContentHash, &r.TimesServed, &r.LastServed, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}

	r.CitedPaperIDs, err = s.citedPaperIDs(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LookupFuzzy scans stored normalized queries for the best similarity match
// at or above threshold and, on a hit, updates the response's usage stats.
func (s *Store) LookupFuzzy(ctx context.Context, rawQuery string, threshold float64) (*models.CacheHit, error) {
	normalized := s.normalizer.Normalize(rawQuery)
	return s.lookupFuzzy(ctx, rawQuery, normalized, cache.Fingerprint(normalized), threshold)
}

func (s *Store) lookupFuzzy(ctx context.Context, rawQuery, normalized, fp string, threshold float64) (*models.CacheHit, error) {
	candidates, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	match, ok := cache.BestMatch(normalized, candidates, threshold)
	if !ok {
		return nil, nil
	}

	var hit models.CacheHit
	err = s.db.QueryRowContext(ctx,
		`SELECT response_id, response_text FROM cached_responses WHERE response_id = ?`,
		match.Key,
	).Scan(&hit.ResponseID, &hit.Text)
	if errors.Is(err, sql.ErrNoRows) {
		// Evicted between scan and read; treat as a miss.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}

	if err := s.serve(ctx, hit.ResponseID, rawQuery, normalized, fp); err != nil {
		return nil, err
	}

	hit.CitedPaperIDs, err = s.citedPaperIDs(ctx, hit.ResponseID)
	if err != nil {
		return nil, err
	}
	hit.Similarity = match.Score
	hit.Exact = false
	return &hit, nil
}

// serve records a cache hit: a row-level atomic counter bump on the response
// and a query-log row, in one transaction. An undercount from a lost race is
// tolerable; a negative counter or a mid-serve delete is not, which the
// transaction rules out.
func (s *Store) serve(ctx context.Context, responseID int64, rawQuery, normalized, fp string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE cached_responses
		 SET times_served = times_served + 1, last_served = ?
		 WHERE response_id = ?`,
		now, responseID,
	); err != nil {
		return fmt.Errorf("serve: update stats: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_queries (query_text, normalized_text, query_hash, cache_hit, created_at) VALUES (?, ?, ?, 1, ?)`,
		rawQuery, normalized, fp, now,
	); err != nil {
		return fmt.Errorf("serve: log query: %w", err)
	}

	return tx.Commit()
}

// Insert stores a fresh response with its query and citations, and returns
// the response key. Inserts are idempotent per fingerprint: when two callers
// race to fill the same slot, the first writer wins and later writers get
// the existing key back instead of an error.
func (s *Store) Insert(ctx context.Context, rawQuery, responseText string, citedPaperIDs []int64) (int64, error) {
	normalized := s.normalizer.Normalize(rawQuery)
	fp := cache.Fingerprint(normalized)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT response_id FROM cached_responses WHERE query_hash = ?`, fp,
	).Scan(&existing)
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("insert: check existing: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_queries (query_text, normalized_text, query_hash, cache_hit, created_at) VALUES (?, ?, ?, 0, ?)`,
		rawQuery, normalized, fp, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert: query row: %w", err)
	}
	queryID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert: query id: %w", err)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO cached_responses (query_id, query_hash, normalized_text, response_text, response_hash, last_served, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query_hash) DO NOTHING`,
		queryID, fp, normalized, responseText, cache.Fingerprint(responseText), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert: response row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race after the existence check.
		if err := tx.QueryRowContext(ctx,
			`SELECT response_id FROM cached_responses WHERE query_hash = ?`, fp,
		).Scan(&existing); err != nil {
			return 0, fmt.Errorf("insert: converge on existing: %w", err)
		}
		return existing, tx.Commit()
	}
	responseID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert: response id: %w", err)
	}

	for i, paperID := range citedPaperIDs {
		if i >= maxCitations {
			break
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO response_citations (response_id, paper_id, citation_order, relevance_rank)
			 VALUES (?, ?, ?, ?)`,
			responseID, paperID, i+1, i+1,
		); err != nil {
			return 0, fmt.Errorf("insert: citation %d: %w", paperID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	if len(citedPaperIDs) == 0 {
		s.logger.Warn("cached response stored without citations",
			zap.Int64("response_id", responseID))
	}
	return responseID, nil
}

// RecordMiss logs a query that produced no cache hit and no stored response,
// for analytics and promotion decisions.
func (s *Store) RecordMiss(ctx context.Context, rawQuery string) (int64, error) {
	normalized := s.normalizer.Normalize(rawQuery)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_queries (query_text, normalized_text, query_hash, cache_hit, created_at) VALUES (?, ?, ?, 0, ?)`,
		rawQuery, normalized, cache.Fingerprint(normalized), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record miss: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record miss: %w", err)
	}
	return id, nil
}

// Stats reports cache contents and the query-log hit rate.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var st models.CacheStats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM cached_responses),
			(SELECT COUNT(*) FROM user_queries),
			(SELECT COUNT(*) FROM user_queries WHERE cache_hit = 1)`,
	).Scan(&st.Entries, &st.Queries, &st.Hits)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	st.Misses = st.Queries - st.Hits
	if st.Queries > 0 {
		st.HitRate = float64(st.Hits) / float64(st.Queries)
	}
	return st, nil
}

// Clear removes all cached responses, their citations, and the query log.
func (s *Store) Clear(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM response_citations`,
		`DELETE FROM cached_responses`,
		`DELETE FROM user_queries`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	return nil
}

// PopularMisses returns normalized queries that missed the cache more than
// minCount times in the window, as pre-caching candidates.
func (s *Store) PopularMisses(ctx context.Context, window time.Duration, minCount int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT normalized_text, COUNT(*) FROM user_queries
		 WHERE cache_hit = 0 AND created_at > ?
		 GROUP BY normalized_text HAVING COUNT(*) > ?
		 ORDER BY COUNT(*) DESC LIMIT 5`,
		time.Now().UTC().Add(-window), minCount,
	)
	if err != nil {
		return nil, fmt.Errorf("popular misses: %w", err)
	}
	defer rows.Close()

	misses := make(map[string]int)
	for rows.Next() {
		var text string
		var count int
		if err := rows.Scan(&text, &count); err != nil {
			return nil, fmt.Errorf("scan popular miss: %w", err)
		}
		misses[text] = count
	}
	return misses, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) candidates(ctx context.Context) ([]cache.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT response_id, normalized_text, last_served
		 FROM cached_responses ORDER BY last_served DESC LIMIT ?`,
		candidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var out []cache.Candidate
	for rows.Next() {
		var c cache.Candidate
		if err := rows.Scan(&c.Key, &c.Normalized, &c.LastServed); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) citedPaperIDs(ctx context.Context, responseID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id FROM response_citations WHERE response_id = ? ORDER BY citation_order`,
		responseID,
	)
	if err != nil {
		return nil, fmt.Errorf("load citations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
