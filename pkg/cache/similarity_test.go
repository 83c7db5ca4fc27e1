package cache

import (
	"testing"
	"time"
)

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("benefits creatine", "benefits creatine"); got != 1 {
		t.Errorf("identical strings should score 1.0, got %v", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "benefits creatine", "benefits creatine supplementation"
	if Similarity(a, b) != Similarity(b, a) {
		t.Error("similarity should be symmetric")
	}
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"benefits creatine", "high intensity interval training"},
		{"abc", "xyz"},
		{"benefits creatine", "benefits creatine supplementation"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		if s < 0 || s > 1 {
			t.Errorf("Similarity(%q, %q) = %v out of [0, 1]", p[0], p[1], s)
		}
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint trigram sets should score 0, got %v", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 1 {
		t.Errorf("two empty strings should score 1.0, got %v", got)
	}
	if got := Similarity("", "benefits creatine"); got != 0 {
		t.Errorf("one empty string should score 0, got %v", got)
	}
	// Strings shorter than one trigram have empty sets too.
	if got := Similarity("ab", "ab"); got != 1 {
		t.Errorf("sub-trigram strings should compare as empty sets, got %v", got)
	}
}

func TestBestMatchInclusiveThreshold(t *testing.T) {
	// "abcd" vs "abcde": trigrams {abc,bcd} vs {abc,bcd,cde}, Jaccard 2/3.
	score := Similarity("abcd", "abcde")
	if score != 2.0/3.0 {
		t.Fatalf("expected 2/3, got %v", score)
	}

	candidates := []Candidate{{Key: 1, Normalized: "abcde"}}

	// A candidate exactly at the threshold is accepted.
	m, ok := BestMatch("abcd", candidates, 2.0/3.0)
	if !ok {
		t.Fatal("score equal to threshold should match")
	}
	if m.Key != 1 || m.Score != 2.0/3.0 {
		t.Errorf("unexpected match: %+v", m)
	}

	// Just above the score it is rejected.
	if _, ok := BestMatch("abcd", candidates, 0.7); ok {
		t.Error("score below threshold should not match")
	}
}

func TestBestMatchPicksHighestScore(t *testing.T) {
	candidates := []Candidate{
		{Key: 1, Normalized: "benefits creatine supplementation"},
		{Key: 2, Normalized: "benefits creatine"},
		{Key: 3, Normalized: "cardiovascular exercise"},
	}
	m, ok := BestMatch("benefits creatine", candidates, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Key != 2 {
		t.Errorf("expected exact candidate 2, got %d", m.Key)
	}
	if m.Score != 1 {
		t.Errorf("expected score 1.0, got %v", m.Score)
	}
}

func TestBestMatchTieBreaksOnRecency(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{Key: 1, Normalized: "benefits creatine", LastServed: now.Add(-time.Hour)},
		{Key: 2, Normalized: "benefits creatine", LastServed: now},
		{Key: 3, Normalized: "benefits creatine", LastServed: now.Add(-time.Minute)},
	}
	m, ok := BestMatch("benefits creatine", candidates, 0.7)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Key != 2 {
		t.Errorf("tie should break to most recently served, got key %d", m.Key)
	}
}

func TestBestMatchNoCandidates(t *testing.T) {
	if _, ok := BestMatch("benefits creatine", nil, 0.7); ok {
		t.Error("no candidates should mean no match")
	}
	candidates := []Candidate{{Key: 1, Normalized: "completely unrelated text"}}
	if _, ok := BestMatch("benefits creatine", candidates, 0.7); ok {
		t.Error("dissimilar candidate should not match")
	}
}
