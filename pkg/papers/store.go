// Package papers persists research papers and their usage counters.
//
// Paper content is owned by the upstream literature database; this store
// only tracks what the cache needs, usage counts and recency, which drive
// promotion and eviction decisions.
package papers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS research_papers (
	paper_id INTEGER PRIMARY KEY AUTOINCREMENT,
	pmid TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	abstract TEXT NOT NULL,
	authors TEXT NOT NULL DEFAULT '[]',
	publication_date TEXT NOT NULL DEFAULT '',
	journal_name TEXT NOT NULL DEFAULT '',
	study_type TEXT NOT NULL DEFAULT '',
	times_used INTEGER NOT NULL DEFAULT 1,
	last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_papers_usage ON research_papers(times_used DESC, last_accessed DESC);
`

// Store is the SQLite-backed paper repository.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the paper database and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open papers db: %w", err)
	}
	if _, err := db.Exec(createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate papers db: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts a paper by PMID. On conflict the usage counter is bumped and
// last_accessed refreshed, so repeated retrieval of the same paper feeds the
// promotion policy. Returns the paper ID.
func (s *Store) Save(ctx context.Context, p models.Paper) (int64, error) {
	authors, err := json.Marshal(p.Authors)
	if err != nil {
		return 0, fmt.Errorf("save paper: marshal authors: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO research_papers (pmid, title, abstract, authors, publication_date, journal_name, study_type, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pmid) DO UPDATE SET
			times_used = research_papers.times_used + 1,
			last_accessed = excluded.last_accessed
		 RETURNING paper_id`,
		p.PMID, p.Title, p.Abstract, string(authors), p.PubDate, p.Journal, p.StudyType, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save paper %s: %w", p.PMID, err)
	}
	return id, nil
}

// SaveBatch upserts a list of papers, returning their IDs in order.
func (s *Store) SaveBatch(ctx context.Context, list []models.Paper) ([]int64, error) {
	ids := make([]int64, 0, len(list))
	for _, p := range list {
		id, err := s.Save(ctx, p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns a paper by ID, or nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*models.Paper, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT paper_id, pmid, title, abstract, authors, publication_date, journal_name, study_type, times_used, last_accessed
		 FROM research_papers WHERE paper_id = ?`, id))
}

// GetByPMID returns a paper by PMID, or nil when absent.
func (s *Store) GetByPMID(ctx context.Context, pmid string) (*models.Paper, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT paper_id, pmid, title, abstract, authors, publication_date, journal_name, study_type, times_used, last_accessed
		 FROM research_papers WHERE pmid = ?`, pmid))
}

// GetMany returns the papers for a list of IDs, preserving the input order.
func (s *Store) GetMany(ctx context.Context, ids []int64) ([]models.Paper, error) {
	out := make([]models.Paper, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Search finds locally stored papers whose title or abstract mentions any of
// the keywords, most-used first. This is the fallback corpus when the live
// literature API is unavailable.
func (s *Store) Search(ctx context.Context, keywords []string, limit int) ([]models.Paper, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	conds := make([]string, 0, len(keywords))
	args := make([]any, 0, 2*len(keywords)+1)
	for _, kw := range keywords {
		conds = append(conds, `(title LIKE ? OR abstract LIKE ?)`)
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id, pmid, title, abstract, authors, publication_date, journal_name, study_type, times_used, last_accessed
		 FROM research_papers WHERE `+strings.Join(conds, " OR ")+`
		 ORDER BY times_used DESC, last_accessed DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var out []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of stored papers.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM research_papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// Touch bumps usage counters for papers served from the local corpus.
func (s *Store) Touch(ctx context.Context, ids []int64) error {
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE research_papers SET times_used = times_used + 1, last_accessed = ? WHERE paper_id = ?`,
			now, id,
		); err != nil {
			return fmt.Errorf("touch paper %d: %w", id, err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row *sql.Row) (*models.Paper, error) {
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPaper(r rowScanner) (models.Paper, error) {
	var p models.Paper
	var authors string
	err := r.Scan(&p.ID, &p.PMID, &p.Title, &p.Abstract, &authors, &p.PubDate, &p.Journal, &p.StudyType, &p.TimesUsed, &p.LastAccessed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan paper: %w", err)
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return p, fmt.Errorf("scan paper authors: %w", err)
	}
	return p, nil
}
