package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/config"
	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/papers"
	"github.com/fitfact-ai/fitfact/pkg/pubmed"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

func newIngestCmd() *cobra.Command {
	var (
		configPath string
		topics     []string
		file       string
		maxPapers  int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load research papers into the local corpus",
		Long: `Ingest fetches papers from PubMed for the given topics, or loads
them from a JSON export, and upserts them into the local corpus.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(topics) == 0 && file == "" {
				return fmt.Errorf("nothing to ingest: pass --topic or --file")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			store, err := papers.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init paper store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			total := 0

			if file != "" {
				list, err := loadPaperFile(file)
				if err != nil {
					return err
				}
				if _, err := store.SaveBatch(ctx, list); err != nil {
					return fmt.Errorf("save papers from %s: %w", file, err)
				}
				total += len(list)
				fmt.Printf("Loaded %d papers from %s\n", len(list), file)
			}

			if len(topics) > 0 {
				tr, err := tracker.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("init tracker: %w", err)
				}
				defer tr.Close()

				client := pubmed.New(pubmed.Config{
					BaseURL:     cfg.PubMed.BaseURL,
					APIKey:      cfg.PubMed.APIKey,
					Email:       cfg.PubMed.Email,
					MinInterval: cfg.PubMed.MinInterval,
					Timeout:     cfg.PubMed.Timeout,
					Logger:      logger,
					Tracker:     tr,
				})

				for _, topic := range topics {
					list, err := client.Search(ctx, topic, maxPapers)
					if err != nil {
						return fmt.Errorf("fetch %q: %w", topic, err)
					}
					if _, err := store.SaveBatch(ctx, list); err != nil {
						return fmt.Errorf("save %q papers: %w", topic, err)
					}
					total += len(list)
					fmt.Printf("Fetched %d papers for %q\n", len(list), topic)
				}
			}

			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested %d papers; corpus now holds %d.\n", total, count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "PubMed search topic (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with a paper array")
	cmd.Flags().IntVar(&maxPapers, "max", 20, "max papers per topic")
	return cmd
}

// loadPaperFile reads a JSON array of papers. Author lists appear both as
// arrays and as comma-joined strings in the wild; models.AuthorList accepts
// either.
func loadPaperFile(path string) ([]models.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var list []models.Paper
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, p := range list {
		if p.PMID == "" {
			return nil, fmt.Errorf("parse %s: paper %q has no pmid", path, p.Title)
		}
	}
	return list, nil
}
