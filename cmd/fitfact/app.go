package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/budget"
	"github.com/fitfact-ai/fitfact/pkg/cache"
	cachepkg "github.com/fitfact-ai/fitfact/pkg/cache/sqlite"
	"github.com/fitfact-ai/fitfact/pkg/config"
	"github.com/fitfact-ai/fitfact/pkg/llm"
	"github.com/fitfact-ai/fitfact/pkg/papers"
	"github.com/fitfact-ai/fitfact/pkg/pipeline"
	"github.com/fitfact-ai/fitfact/pkg/pubmed"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

// app bundles the wired components shared by serve and ask.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	cache     *cachepkg.Store
	papers    *papers.Store
	tracker   *tracker.SQLiteTracker
	processor *pipeline.Processor
}

// newApp wires the full pipeline from config. All stores share one
// database file.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init tracker: %w", err)
	}

	cacheStore, err := cachepkg.New(cfg.DBPath, cachepkg.Options{
		Threshold: cfg.Cache.Threshold,
		Synonyms:  synonymRules(cfg.Cache.Synonyms),
		Logger:    logger,
	})
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	paperStore, err := papers.New(cfg.DBPath)
	if err != nil {
		cacheStore.Close()
		tr.Close()
		return nil, fmt.Errorf("init paper store: %w", err)
	}

	var enforcer *budget.Enforcer
	if cfg.Budget.Enabled {
		enforcer = budget.New(cfg.Budget.Policies, tr)
	}

	pm := pubmed.New(pubmed.Config{
		BaseURL:     cfg.PubMed.BaseURL,
		APIKey:      cfg.PubMed.APIKey,
		Email:       cfg.PubMed.Email,
		MinInterval: cfg.PubMed.MinInterval,
		Timeout:     cfg.PubMed.Timeout,
		Logger:      logger,
		Tracker:     tr,
	})

	gen := llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MinInterval: cfg.LLM.MinInterval,
		Logger:      logger,
		Tracker:     tr,
		Enforcer:    enforcer,
	})

	proc := pipeline.New(pipeline.Options{
		Cache:        cacheStore,
		PubMed:       pm,
		Papers:       paperStore,
		Generator:    gen,
		Logger:       logger,
		CacheEnabled: cfg.Cache.Enabled,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		cache:     cacheStore,
		papers:    paperStore,
		tracker:   tr,
		processor: proc,
	}, nil
}

func (a *app) Close() {
	_ = a.papers.Close()
	_ = a.cache.Close()
	_ = a.tracker.Close()
	_ = a.logger.Sync()
}

func synonymRules(rules []config.SynonymRule) []cache.SynonymRule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]cache.SynonymRule, len(rules))
	for i, r := range rules {
		out[i] = cache.SynonymRule{From: r.From, To: r.To}
	}
	return out
}
