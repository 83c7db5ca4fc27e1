package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/config"
	"github.com/fitfact-ai/fitfact/pkg/models"
)

func newAskCmd() *cobra.Command {
	var (
		configPath string
		detail     string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a fitness question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := zap.NewNop()
			if verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
			}

			level := models.DetailLevel(detail)
			if !level.Valid() {
				return fmt.Errorf("invalid detail level %q (want brief, standard or detailed)", detail)
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			answer, err := a.processor.Ask(cmd.Context(), question, level)
			if err != nil {
				return err
			}

			fmt.Println(answer.Text)
			if answer.References != "" {
				fmt.Println()
				fmt.Println(answer.References)
			}
			if answer.FromCache {
				fmt.Printf("\n[cached, similarity %.2f]\n", answer.Similarity)
			} else {
				fmt.Printf("\n[source: %s]\n", answer.Source)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	cmd.Flags().StringVarP(&detail, "detail", "d", string(models.DetailStandard), "answer detail: brief, standard or detailed")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity")
	return cmd
}
