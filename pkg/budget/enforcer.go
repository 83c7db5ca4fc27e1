// Package budget enforces token spend caps against external APIs.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

// ErrBudgetExceeded is returned when a call would exceed the budget.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Enforcer checks recorded API spend against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	tracker  tracker.Tracker
}

// New creates an Enforcer with the given policies and tracker.
func New(policies []models.BudgetPolicy, t tracker.Tracker) *Enforcer {
	return &Enforcer{policies: policies, tracker: t}
}

// Check returns ErrBudgetExceeded if the API has exhausted any applicable
// policy for the current period.
func (e *Enforcer) Check(ctx context.Context, apiName string) error {
	for _, p := range e.applicable(apiName) {
		used, err := e.tracker.TotalTokens(ctx, apiName, periodStart(p.Period))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if used >= p.MaxTokens {
			return ErrBudgetExceeded
		}
	}
	return nil
}

// Status returns the budget status for an API across all applicable policies.
func (e *Enforcer) Status(ctx context.Context, apiName string) ([]models.BudgetStatus, error) {
	policies := e.applicable(apiName)
	statuses := make([]models.BudgetStatus, 0, len(policies))

	for _, p := range policies {
		used, err := e.tracker.TotalTokens(ctx, apiName, periodStart(p.Period))
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		remaining := p.MaxTokens - used
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.BudgetStatus{
			Policy:    p,
			Used:      used,
			Remaining: remaining,
		})
	}
	return statuses, nil
}

func (e *Enforcer) applicable(apiName string) []models.BudgetPolicy {
	var result []models.BudgetPolicy
	for _, p := range e.policies {
		if p.APIName == "*" || p.APIName == apiName {
			result = append(result, p)
		}
	}
	return result
}

func periodStart(period models.BudgetPeriod) time.Time {
	now := time.Now().UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
