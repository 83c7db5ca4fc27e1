// Package pipeline runs the full question flow: cache lookup, literature
// retrieval with local fallback, answer generation, and cache fill.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/citation"
	"github.com/fitfact-ai/fitfact/pkg/keywords"
	"github.com/fitfact-ai/fitfact/pkg/metrics"
	"github.com/fitfact-ai/fitfact/pkg/models"
)

// papersPerQuestion is how many papers back one answer.
const papersPerQuestion = 5

// ErrNoPapers means neither the live literature API nor the local corpus
// produced anything relevant.
var ErrNoPapers = errors.New("no relevant papers found")

// Source labels for answers.
const (
	SourceCache            = "cache"
	SourcePubMedLive       = "pubmed_live"
	SourceDatabaseFallback = "database_fallback"
)

// CacheStore is the response cache surface the pipeline needs.
type CacheStore interface {
	Lookup(ctx context.Context, rawQuery string) (*models.CacheHit, error)
	Insert(ctx context.Context, rawQuery, responseText string, citedPaperIDs []int64) (int64, error)
	RecordMiss(ctx context.Context, rawQuery string) (int64, error)
}

// PaperSearcher retrieves papers from the live literature API.
type PaperSearcher interface {
	Search(ctx context.Context, term string, max int) ([]models.Paper, error)
}

// PaperRepo is the local paper corpus.
type PaperRepo interface {
	SaveBatch(ctx context.Context, list []models.Paper) ([]int64, error)
	Search(ctx context.Context, kws []string, limit int) ([]models.Paper, error)
	GetMany(ctx context.Context, ids []int64) ([]models.Paper, error)
	Touch(ctx context.Context, ids []int64) error
}

// Generator produces the answer text from retrieved papers.
type Generator interface {
	Generate(ctx context.Context, question string, papers []models.Paper, detail models.DetailLevel) (string, int64, error)
}

// Processor wires the collaborators together.
type Processor struct {
	cache    CacheStore
	pubmed   PaperSearcher
	papers   PaperRepo
	gen      Generator
	logger   *zap.Logger
	useCache bool
}

// Options configures a Processor.
type Options struct {
	Cache        CacheStore
	PubMed       PaperSearcher
	Papers       PaperRepo
	Generator    Generator
	Logger       *zap.Logger
	CacheEnabled bool
}

// New creates a Processor.
func New(opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Processor{
		cache:    opts.Cache,
		pubmed:   opts.PubMed,
		papers:   opts.Papers,
		gen:      opts.Generator,
		logger:   opts.Logger,
		useCache: opts.CacheEnabled && opts.Cache != nil,
	}
}

// Ask answers one question. Cache and storage failures are recovered as
// misses so an outage costs latency, never an answer; only generation
// failure or an empty corpus surfaces as an error.
func (p *Processor) Ask(ctx context.Context, question string, detail models.DetailLevel) (*models.Answer, error) {
	if !detail.Valid() {
		detail = models.DetailStandard
	}

	if p.useCache {
		if ans := p.tryCache(ctx, question); ans != nil {
			return ans, nil
		}
	}

	kw := keywords.Extract(question)
	if kw.SearchQuery == "" {
		p.recordMiss(ctx, question)
		return nil, ErrNoPapers
	}
	p.logger.Debug("extracted keywords",
		zap.String("search_query", kw.SearchQuery),
		zap.String("category", keywords.Category(kw.Keywords)))

	papers, source := p.retrievePapers(ctx, kw)
	if len(papers) == 0 {
		p.recordMiss(ctx, question)
		return nil, ErrNoPapers
	}

	ids, err := p.persistPapers(ctx, papers, source)
	if err != nil {
		// The corpus is an optimization; answer anyway.
		p.logger.Warn("persist papers failed", zap.Error(err))
	}

	start := time.Now()
	text, tokens, err := p.gen.Generate(ctx, question, papers, detail)
	metrics.UpstreamRequestDuration.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	if err != nil {
		p.recordMiss(ctx, question)
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if p.useCache {
		if _, err := p.cache.Insert(ctx, question, text, ids); err != nil {
			p.logger.Warn("cache insert failed", zap.Error(err))
		}
	}

	metrics.QuestionsTotal.WithLabelValues(source).Inc()
	return &models.Answer{
		Text:          text,
		References:    citation.ReferenceList(papers),
		CitedPaperIDs: ids,
		FromCache:     false,
		Source:        source,
		TokensUsed:    tokens,
	}, nil
}

// tryCache performs a fail-closed cache lookup: any error is logged and
// treated as a miss.
func (p *Processor) tryCache(ctx context.Context, question string) *models.Answer {
	hit, err := p.cache.Lookup(ctx, question)
	if err != nil {
		p.logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil
	}
	if hit == nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}

	outcome := "hit_fuzzy"
	if hit.Exact {
		outcome = "hit_exact"
	}
	metrics.CacheLookupsTotal.WithLabelValues(outcome).Inc()
	metrics.QuestionsTotal.WithLabelValues(SourceCache).Inc()
	p.logger.Info("cache hit",
		zap.Bool("exact", hit.Exact),
		zap.Float64("similarity", hit.Similarity))

	var refs string
	if cited, err := p.papers.GetMany(ctx, hit.CitedPaperIDs); err == nil {
		refs = citation.ReferenceList(cited)
	} else {
		p.logger.Warn("load cited papers failed", zap.Error(err))
	}

	return &models.Answer{
		Text:          hit.Text,
		References:    refs,
		CitedPaperIDs: hit.CitedPaperIDs,
		FromCache:     true,
		Similarity:    hit.Similarity,
		Source:        SourceCache,
	}
}

// retrievePapers tries the live literature API first and falls back to the
// local corpus. A transient upstream failure is logged, never cached.
func (p *Processor) retrievePapers(ctx context.Context, kw keywords.Result) ([]models.Paper, string) {
	start := time.Now()
	papers, err := p.pubmed.Search(ctx, kw.SearchQuery, papersPerQuestion)
	metrics.UpstreamRequestDuration.WithLabelValues("pubmed").Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("live paper search failed, falling back to local corpus", zap.Error(err))
	} else if len(papers) > 0 {
		return papers, SourcePubMedLive
	}

	local, err := p.papers.Search(ctx, kw.Keywords, papersPerQuestion)
	if err != nil {
		p.logger.Warn("local paper search failed", zap.Error(err))
		return nil, SourceDatabaseFallback
	}
	return local, SourceDatabaseFallback
}

// persistPapers saves live papers (returning their local IDs) or bumps
// usage counters for papers already served from the local corpus.
func (p *Processor) persistPapers(ctx context.Context, papers []models.Paper, source string) ([]int64, error) {
	if source == SourcePubMedLive {
		return p.papers.SaveBatch(ctx, papers)
	}
	ids := make([]int64, 0, len(papers))
	for _, paper := range papers {
		ids = append(ids, paper.ID)
	}
	return ids, p.papers.Touch(ctx, ids)
}

func (p *Processor) recordMiss(ctx context.Context, question string) {
	if !p.useCache {
		return
	}
	if _, err := p.cache.RecordMiss(ctx, question); err != nil {
		p.logger.Warn("record miss failed", zap.Error(err))
	}
}
