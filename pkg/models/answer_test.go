package models

import "testing"

func TestDetailLevelMaxTokens(t *testing.T) {
	cases := []struct {
		level DetailLevel
		want  int
	}{
		{DetailBrief, 200},
		{DetailStandard, 500},
		{DetailDetailed, 1500},
		{DetailLevel("bogus"), 500},
	}
	for _, tc := range cases {
		if got := tc.level.MaxTokens(); got != tc.want {
			t.Errorf("MaxTokens(%q) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestDetailLevelValid(t *testing.T) {
	for _, level := range []DetailLevel{DetailBrief, DetailStandard, DetailDetailed} {
		if !level.Valid() {
			t.Errorf("%q should be valid", level)
		}
	}
	if DetailLevel("").Valid() || DetailLevel("verbose").Valid() {
		t.Error("unknown levels should be invalid")
	}
}
