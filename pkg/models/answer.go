package models

// DetailLevel controls how long a generated answer should be.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// MaxTokens returns the generation token limit for the level.
func (d DetailLevel) MaxTokens() int {
	switch d {
	case DetailBrief:
		return 200
	case DetailDetailed:
		return 1500
	default:
		return 500
	}
}

// Valid reports whether d is a recognized detail level.
func (d DetailLevel) Valid() bool {
	switch d {
	case DetailBrief, DetailStandard, DetailDetailed:
		return true
	}
	return false
}

// Answer is the end result of one question, cached or freshly generated.
type Answer struct {
	Text          string  `json:"text"`
	References    string  `json:"references,omitempty"`
	CitedPaperIDs []int64 `json:"cited_paper_ids"`
	FromCache     bool    `json:"from_cache"`
	Similarity    float64 `json:"similarity,omitempty"`
	Source        string  `json:"source"` // "cache", "pubmed_live", "database_fallback"
	TokensUsed    int64   `json:"tokens_used,omitempty"`
}
