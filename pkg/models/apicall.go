package models

import "time"

// APICallRecord tracks one call to an external API (PubMed, generation).
type APICallRecord struct {
	ID         int64     `json:"id"`
	APIName    string    `json:"api_name"`
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"status_code"`
	LatencyMs  int64     `json:"latency_ms"`
	TokensUsed int64     `json:"tokens_used"`
	CostUSD    float64   `json:"cost_usd"`
	CreatedAt  time.Time `json:"created_at"`
}

// APICallSummary aggregates calls per API.
type APICallSummary struct {
	APIName      string  `json:"api_name"`
	CallCount    int64   `json:"call_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}
