package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Optional; real deployments use a config file or the environment.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:     "fitfact",
		Short:   "FitFact is an evidence-based fitness Q&A service backed by PubMed",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newIngestCmd(),
		newCacheCmd(),
		newSweepCmd(),
		newStatsCmd(),
		newBudgetCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
