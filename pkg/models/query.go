package models

import "time"

// Query is a raw user-submitted question, immutable once logged.
type Query struct {
	ID         int64     `json:"id"`
	RawText    string    `json:"raw_text"`
	Normalized string    `json:"normalized"`
	Hash       string    `json:"hash"`
	CacheHit   bool      `json:"cache_hit"`
	CreatedAt  time.Time `json:"created_at"`
}

// CachedResponse is a generated answer tied to exactly one originating query.
// TimesServed and LastServed mutate on every cache hit; everything else is
// written once.
type CachedResponse struct {
	ID            int64     `json:"id"`
	QueryID       int64     `json:"query_id"`
	Text          string    `json:"text"`
	ContentHash   string    `json:"content_hash"`
	TimesServed   int64     `json:"times_served"`
	LastServed    time.Time `json:"last_served"`
	CreatedAt     time.Time `json:"created_at"`
	CitedPaperIDs []int64   `json:"cited_paper_ids"`
}

// Citation links a cached response to a source paper in citation order.
// Created at store time, never mutated, deleted with the owning response.
type Citation struct {
	ResponseID    int64 `json:"response_id"`
	PaperID       int64 `json:"paper_id"`
	CitationOrder int   `json:"citation_order"`
	RelevanceRank int   `json:"relevance_rank"`
}

// CacheHit is the result of a successful cache lookup.
type CacheHit struct {
	ResponseID    int64   `json:"response_id"`
	Text          string  `json:"text"`
	CitedPaperIDs []int64 `json:"cited_paper_ids"`
	Similarity    float64 `json:"similarity"`
	Exact         bool    `json:"exact"`
}

// CacheStats reports cache contents and hit/miss counters.
type CacheStats struct {
	Entries int64   `json:"entries"`
	Queries int64   `json:"queries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
