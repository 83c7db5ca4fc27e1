// Package cache implements query normalization, fingerprinting and fuzzy
// matching for the response cache.
package cache

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords are removed from queries before token sorting. Articles,
// prepositions and common auxiliary verbs carry no signal for matching.
var stopWords = map[string]struct{}{
	"what": {}, "is": {}, "the": {}, "of": {}, "for": {}, "and": {},
	"a": {}, "an": {}, "to": {}, "in": {}, "are": {}, "how": {},
	"does": {}, "can": {}, "should": {}, "my": {}, "i": {}, "about": {},
}

// SynonymRule maps an informal term to its canonical equivalent.
type SynonymRule struct {
	From string
	To   string
}

// defaultSynonyms is applied as a single pass in fixed order. The rules are
// not confluent, so multi-word phrases must come before single words.
var defaultSynonyms = []SynonymRule{
	{"creatine monohydrate", "creatine"},
	{"hiit", "high intensity interval training"},
	{"whey", "protein"},
	{"weights", "resistance training"},
	{"cardio", "cardiovascular exercise"},
	{"supplements", "supplementation"},
	{"muscle", "muscles"},
	{"strength", "strength training"},
}

// Normalizer canonicalizes raw query text into a comparable form.
type Normalizer struct {
	synonyms []SynonymRule
}

// NewNormalizer creates a Normalizer with the given synonym rules, or the
// default fitness rule set when rules is nil.
func NewNormalizer(rules []SynonymRule) *Normalizer {
	if rules == nil {
		rules = defaultSynonyms
	}
	return &Normalizer{synonyms: rules}
}

// Normalize is pure, total and deterministic: lowercase, strip punctuation,
// apply synonyms, drop stop words, then sort tokens so word order cannot
// defeat matching. Synonyms run against the lowercased, unsorted string
// because multi-word phrases must be seen before token sorting destroys
// adjacency. An empty result is legal (the "empty query" bucket).
func (n *Normalizer) Normalize(raw string) string {
	s := stripPunctuation(strings.ToLower(raw))
	s = n.ApplySynonyms(s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// ApplySynonyms performs literal substring replacement using the ordered
// rule list. One pass, fixed order; later rules see the output of earlier
// ones, which is why rules are ordered by decreasing specificity.
func (n *Normalizer) ApplySynonyms(lowered string) string {
	result := lowered
	for _, rule := range n.synonyms {
		result = strings.ReplaceAll(result, rule.From, rule.To)
	}
	return result
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
