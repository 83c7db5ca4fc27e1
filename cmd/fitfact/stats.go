package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fitfact-ai/fitfact/pkg/config"
	"github.com/fitfact-ai/fitfact/pkg/papers"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		apiName    string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus size and external API usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			store, err := papers.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Papers in corpus: %d\n\n", count)

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			summaries, err := tr.Summary(ctx, apiName)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No API usage recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "API\tCALLS\tERRORS\tAVG LATENCY MS\tTOKENS\tCOST USD")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\t%d\t%.4f\n",
					s.APIName, s.CallCount, s.ErrorCount, s.AvgLatencyMs, s.TotalTokens, s.TotalCostUSD)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	cmd.Flags().StringVar(&apiName, "api", "", "filter by API name")
	return cmd
}
