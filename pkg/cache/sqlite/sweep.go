package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/metrics"
	"github.com/fitfact-ai/fitfact/pkg/models"
)

// promotionBatch caps how many papers one sweep pre-warms.
const promotionBatch = 10

// Sweep runs one eviction/promotion pass. Responses whose last serve is
// older than the age threshold AND whose serve count is under the usage
// floor are deleted, cascading to their citations. Papers that are stale,
// under-used and no longer referenced by any live citation go with them; a
// paper with a live citation is never deleted. Finally, high-traffic papers
// without a cached response get a synthetic query/response pre-warmed into
// the cache.
//
// The sweep is best-effort: a failure on one entry is logged and counted,
// and the sweep moves on. It expects the paper store schema to exist in the
// same database file.
func (s *Store) Sweep(ctx context.Context, opts models.SweepOptions) (models.SweepReport, error) {
	var report models.SweepReport
	cutoff := time.Now().UTC().AddDate(0, 0, -opts.AgeThresholdDays)

	rows, err := s.db.QueryContext(ctx,
		`SELECT response_id FROM cached_responses WHERE last_served < ? AND times_served < ?`,
		cutoff, opts.UsageFloor,
	)
	if err != nil {
		return report, fmt.Errorf("sweep: find stale responses: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return report, fmt.Errorf("sweep: scan stale response: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("sweep: iterate stale responses: %w", err)
	}

	for _, id := range stale {
		if err := s.evictResponse(ctx, id); err != nil {
			s.logger.Warn("sweep: evict response failed",
				zap.Int64("response_id", id), zap.Error(err))
			report.Errors++
			continue
		}
		report.EvictedResponses++
		metrics.CacheEvictionsTotal.WithLabelValues("response").Inc()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM research_papers
		 WHERE last_accessed < ? AND times_used < ?
		 AND paper_id NOT IN (SELECT DISTINCT paper_id FROM response_citations)`,
		cutoff, opts.UsageFloor,
	)
	if err != nil {
		s.logger.Warn("sweep: evict papers failed", zap.Error(err))
		report.Errors++
	} else if n, err := res.RowsAffected(); err == nil {
		report.EvictedPapers = int(n)
		metrics.CacheEvictionsTotal.WithLabelValues("paper").Add(float64(n))
	}

	promoted, errs := s.promote(ctx, opts.PromotionThreshold)
	report.Promoted = promoted
	report.Errors += errs

	s.logger.Info("maintenance sweep finished",
		zap.Int("evicted_responses", report.EvictedResponses),
		zap.Int("evicted_papers", report.EvictedPapers),
		zap.Int("promoted", report.Promoted),
		zap.Int("errors", report.Errors))
	return report, nil
}

// evictResponse deletes one cached response and its query-log row. The
// citation rows cascade through the foreign key.
func (s *Store) evictResponse(ctx context.Context, responseID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cached_responses WHERE response_id = ?`, responseID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// promote pre-warms the cache for papers whose usage count crossed the
// high-traffic threshold but which no cached response cites yet. Subsequent
// real queries about those papers then hit the cache immediately.
func (s *Store) promote(ctx context.Context, threshold int) (promoted, errs int) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id, pmid, title, abstract FROM research_papers
		 WHERE times_used >= ?
		 AND paper_id NOT IN (SELECT DISTINCT paper_id FROM response_citations)
		 ORDER BY times_used DESC LIMIT ?`,
		threshold, promotionBatch,
	)
	if err != nil {
		s.logger.Warn("sweep: find promotion candidates failed", zap.Error(err))
		return 0, 1
	}
	defer rows.Close()

	type candidate struct {
		id              int64
		pmid            string
		title, abstract string
	}
	var cands []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.pmid, &c.title, &c.abstract); err != nil {
			s.logger.Warn("sweep: scan promotion candidate failed", zap.Error(err))
			errs++
			continue
		}
		cands = append(cands, c)
	}

	for _, c := range cands {
		query := fmt.Sprintf("what does research say about %s", strings.ToLower(c.title))
		if _, err := s.Insert(ctx, query, syntheticResponse(c.pmid, c.title, c.abstract), []int64{c.id}); err != nil {
			s.logger.Warn("sweep: promote paper failed",
				zap.Int64("paper_id", c.id), zap.Error(err))
			errs++
			continue
		}
		promoted++
		metrics.CachePromotionsTotal.Inc()
	}
	return promoted, errs
}

func syntheticResponse(pmid, title, abstract string) string {
	summary := abstract
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	return fmt.Sprintf(
		"Based on research (PMID: %s), this study examined %s. The findings suggest that %s This research provides evidence for the effectiveness of the intervention studied.",
		pmid, title, summary,
	)
}
