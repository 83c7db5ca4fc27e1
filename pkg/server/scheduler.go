package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

// SweepLoop runs maintenance sweeps at the given interval until ctx ends.
// A zero or negative interval disables the loop.
func SweepLoop(ctx context.Context, sweeper Sweeper, interval time.Duration, opts models.SweepOptions, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := sweeper.Sweep(ctx, opts)
			if err != nil {
				logger.Error("scheduled sweep failed", zap.Error(err))
				continue
			}
			logger.Info("scheduled sweep complete",
				zap.Int("evicted_responses", report.EvictedResponses),
				zap.Int("evicted_papers", report.EvictedPapers),
				zap.Int("promoted", report.Promoted),
				zap.Int("errors", report.Errors))
		}
	}
}
