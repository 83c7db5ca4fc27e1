package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	cachepkg "github.com/fitfact-ai/fitfact/pkg/cache/sqlite"
	"github.com/fitfact-ai/fitfact/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the query cache",
	}

	openStore := func() (*cachepkg.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return cachepkg.New(cfg.DBPath, cachepkg.Options{Threshold: cfg.Cache.Threshold})
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Entries:  %d\nQueries:  %d\nHits:     %d\nMisses:   %d\nHit rate: %.1f%%\n",
				stats.Entries, stats.Queries, stats.Hits, stats.Misses, stats.HitRate*100)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached responses and query history",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Cache cleared.")
			return nil
		},
	}

	var (
		windowDays int
		minCount   int
	)
	missesCmd := &cobra.Command{
		Use:   "misses",
		Short: "Show frequently missed queries worth pre-warming",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			misses, err := c.PopularMisses(cmd.Context(), time.Duration(windowDays)*24*time.Hour, minCount)
			if err != nil {
				return err
			}
			if len(misses) == 0 {
				fmt.Println("No repeated misses in the window.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COUNT\tNORMALIZED QUERY")
			for q, n := range misses {
				fmt.Fprintf(w, "%d\t%s\n", n, q)
			}
			return w.Flush()
		},
	}
	missesCmd.Flags().IntVar(&windowDays, "days", 7, "look-back window in days")
	missesCmd.Flags().IntVar(&minCount, "min-count", 3, "minimum miss count")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, missesCmd)
	return cmd
}
