// Package keywords extracts search terms from fitness questions.
package keywords

import (
	"strings"
	"unicode"
)

// maxKeywords limits how many plain keywords feed the search query, so the
// literature search does not become overly specific.
const maxKeywords = 5

var stopWords = map[string]struct{}{
	"what": {}, "are": {}, "the": {}, "of": {}, "for": {}, "is": {},
	"how": {}, "does": {}, "can": {}, "will": {}, "should": {}, "would": {},
	"do": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "my": {}, "me": {}, "i": {}, "to": {}, "from": {},
	"with": {}, "about": {}, "when": {}, "where": {}, "why": {}, "tell": {},
}

// fitnessTerms are domain words always kept as keywords.
var fitnessTerms = map[string]struct{}{
	"protein": {}, "carbs": {}, "fat": {}, "calories": {}, "muscle": {},
	"strength": {}, "cardio": {}, "hiit": {}, "workout": {}, "exercise": {},
	"training": {}, "recovery": {}, "supplement": {}, "creatine": {},
	"whey": {}, "bcaa": {}, "hypertrophy": {}, "endurance": {},
	"resistance": {}, "reps": {}, "sets": {}, "bulking": {}, "cutting": {},
	"lean": {}, "mass": {}, "weight": {}, "loss": {}, "gain": {},
	"nutrition": {}, "diet": {}, "metabolism": {}, "energy": {},
	"performance": {},
}

// phraseRule rewrites a multi-word phrase to a canonical token. Ordered by
// decreasing specificity so phrase matches win before word-level extraction.
type phraseRule struct {
	phrase, token string
}

var phraseRules = []phraseRule{
	{"high intensity interval training", "HIIT"},
	{"branched chain amino acids", "BCAA"},
	{"delayed onset muscle soreness", "DOMS"},
	{"rate of perceived exertion", "RPE"},
	{"one rep max", "1RM"},
	{"body mass index", "BMI"},
	{"muscle growth", "hypertrophy"},
	{"muscle building", "hypertrophy"},
	{"weight training", "resistance_training"},
	{"strength training", "resistance_training"},
	{"heart rate", "heart_rate"},
	{"blood pressure", "blood_pressure"},
	{"fat loss", "fat_loss"},
}

// categories maps fitness topics to their indicator terms.
var categories = map[string][]string{
	"supplementation":   {"supplement", "creatine", "whey", "protein", "bcaa", "vitamin", "mineral"},
	"nutrition":         {"diet", "nutrition", "calories", "macros", "carbs", "fat", "meal", "food", "fasting"},
	"strength_training": {"strength", "resistance", "weight", "lifting", "hypertrophy", "muscle", "reps", "sets"},
	"cardio":            {"cardio", "hiit", "running", "cycling", "endurance", "aerobic", "vo2max"},
	"recovery":          {"recovery", "rest", "sleep", "injury", "soreness", "doms", "stretching", "massage"},
	"weight_management": {"weight", "loss", "gain", "cutting", "bulking", "lean", "bmi"},
}

// Result is the outcome of one extraction.
type Result struct {
	Keywords     []string
	FitnessTerms []string
	Phrases      []string
	SearchQuery  string
}

// Extract pulls the search-relevant terms out of a raw question. Phrase
// rules run before tokenization because tokenizing destroys adjacency.
func Extract(query string) Result {
	lowered := strings.ToLower(query)

	var phrases []string
	for _, rule := range phraseRules {
		if strings.Contains(lowered, rule.phrase) {
			phrases = append(phrases, rule.token)
			lowered = strings.ReplaceAll(lowered, rule.phrase, strings.ToLower(rule.token))
		}
	}

	var keywords, terms []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(stripNonAlnum(lowered)) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if len(tok) <= 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
		if _, fit := fitnessTerms[tok]; fit {
			terms = append(terms, tok)
		}
	}

	return Result{
		Keywords:     keywords,
		FitnessTerms: terms,
		Phrases:      phrases,
		SearchQuery:  buildSearchQuery(keywords, phrases),
	}
}

// Category assigns the dominant fitness topic for a keyword set, or
// "general_fitness" when nothing matches.
func Category(keywords []string) string {
	best, bestScore := "general_fitness", 0
	// Stable iteration order keeps ties deterministic.
	for _, name := range []string{"cardio", "nutrition", "recovery", "strength_training", "supplementation", "weight_management"} {
		score := 0
		for _, kw := range keywords {
			for _, term := range categories[name] {
				if kw == term {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

func buildSearchQuery(keywords, phrases []string) string {
	terms := make([]string, 0, len(phrases)+maxKeywords)
	seen := make(map[string]struct{})
	add := func(t string) {
		key := strings.ToLower(t)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			terms = append(terms, t)
		}
	}
	for _, t := range phrases {
		add(t)
	}
	for i, t := range keywords {
		if i >= maxKeywords {
			break
		}
		add(t)
	}
	return strings.Join(terms, " ")
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
