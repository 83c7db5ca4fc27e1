package models

// SweepOptions controls one eviction/promotion sweep.
type SweepOptions struct {
	AgeThresholdDays   int `json:"age_threshold_days" yaml:"age_threshold_days"`
	UsageFloor         int `json:"usage_floor" yaml:"usage_floor"`
	PromotionThreshold int `json:"promotion_threshold" yaml:"promotion_threshold"`
}

// DefaultSweepOptions returns the standard sweep tuning.
func DefaultSweepOptions() SweepOptions {
	return SweepOptions{
		AgeThresholdDays:   50,
		UsageFloor:         5,
		PromotionThreshold: 20,
	}
}

// SweepReport summarizes what one maintenance sweep did. A sweep is
// best-effort, so the counts reflect partial progress on failure.
type SweepReport struct {
	EvictedResponses int `json:"evicted_responses"`
	EvictedPapers    int `json:"evicted_papers"`
	Promoted         int `json:"promoted"`
	Errors           int `json:"errors"`
}
