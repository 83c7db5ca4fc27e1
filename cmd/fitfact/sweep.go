package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cachepkg "github.com/fitfact-ai/fitfact/pkg/cache/sqlite"
	"github.com/fitfact-ai/fitfact/pkg/config"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		ageDays    int
		usageFloor int
		promoteAt  int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep (eviction and promotion)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			c, err := cachepkg.New(cfg.DBPath, cachepkg.Options{
				Threshold: cfg.Cache.Threshold,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			opts := cfg.Sweep.Options()
			if ageDays > 0 {
				opts.AgeThresholdDays = ageDays
			}
			if usageFloor > 0 {
				opts.UsageFloor = usageFloor
			}
			if promoteAt > 0 {
				opts.PromotionThreshold = promoteAt
			}

			report, err := c.Sweep(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fmt.Printf("Evicted responses: %d\nEvicted papers:    %d\nPromoted:          %d\n",
				report.EvictedResponses, report.EvictedPapers, report.Promoted)
			if report.Errors > 0 {
				fmt.Printf("Errors:            %d (see logs)\n", report.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	cmd.Flags().IntVar(&ageDays, "age-days", 0, "override age threshold in days")
	cmd.Flags().IntVar(&usageFloor, "usage-floor", 0, "override minimum serve count")
	cmd.Flags().IntVar(&promoteAt, "promote-at", 0, "override promotion usage threshold")
	return cmd
}
