// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookupsTotal counts cache lookups by outcome:
	// hit_exact, hit_fuzzy, miss, error.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitfact",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by outcome.",
	}, []string{"outcome"})

	// CacheEvictionsTotal counts entries removed by maintenance sweeps.
	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitfact",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Entries evicted by maintenance sweeps.",
	}, []string{"kind"}) // response, paper

	// CachePromotionsTotal counts pre-warmed responses.
	CachePromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fitfact",
		Subsystem: "cache",
		Name:      "promotions_total",
		Help:      "Responses pre-warmed for high-traffic papers.",
	})

	// UpstreamRequestDuration observes external API latency.
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitfact",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "External API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"api"})

	// QuestionsTotal counts answered questions by source.
	QuestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitfact",
		Name:      "questions_total",
		Help:      "Questions answered by source.",
	}, []string{"source"})
)
