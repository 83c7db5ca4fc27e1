package cache

import (
	"sort"
	"time"
)

// DefaultThreshold is the minimum similarity score accepted as a fuzzy match.
const DefaultThreshold = 0.7

// Candidate is one previously stored normalized query the matcher scans.
type Candidate struct {
	Key        int64
	Normalized string
	LastServed time.Time
}

// Match is an accepted fuzzy match.
type Match struct {
	Key   int64
	Score float64
}

// Similarity computes trigram Jaccard similarity between two normalized
// strings. Symmetric, bounded in [0, 1]; identical strings score 1.0.
func Similarity(a, b string) float64 {
	return jaccard(buildTrigrams(a), buildTrigrams(b))
}

// BestMatch returns the highest-scoring candidate with score >= threshold
// (inclusive), or false when none qualifies. Candidates tied at the maximum
// score break toward the most recently served one, so repeated lookups are
// reproducible.
func BestMatch(normalized string, candidates []Candidate, threshold float64) (Match, bool) {
	trigrams := buildTrigrams(normalized)

	var best Match
	var bestServed time.Time
	found := false

	for _, c := range candidates {
		score := jaccard(trigrams, buildTrigrams(c.Normalized))
		if score < threshold {
			continue
		}
		if !found || score > best.Score || (score == best.Score && c.LastServed.After(bestServed)) {
			best = Match{Key: c.Key, Score: score}
			bestServed = c.LastServed
			found = true
		}
	}
	return best, found
}

// buildTrigrams packs each 3-byte window into a uint32, then sorts and
// deduplicates. Strings shorter than one trigram produce an empty set.
func buildTrigrams(s string) []uint32 {
	if len(s) < 3 {
		return nil
	}

	trigrams := make([]uint32, 0, len(s)-2)
	for i := 0; i <= len(s)-3; i++ {
		trigrams = append(trigrams, uint32(s[i])<<16|uint32(s[i+1])<<8|uint32(s[i+2]))
	}

	sort.Slice(trigrams, func(i, j int) bool { return trigrams[i] < trigrams[j] })
	n := 1
	for i := 1; i < len(trigrams); i++ {
		if trigrams[i] != trigrams[i-1] {
			trigrams[n] = trigrams[i]
			n++
		}
	}
	return trigrams[:n]
}

// jaccard computes |A ∩ B| / |A ∪ B| over sorted deduplicated sets. Two
// empty sets are considered identical; one empty set matches nothing.
func jaccard(a, b []uint32) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	i, j, intersection := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
