package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/config"
	"github.com/fitfact-ai/fitfact/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the FitFact HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go server.SweepLoop(ctx, a.cache, cfg.Sweep.Interval, cfg.Sweep.Options(), logger)

			srv := server.New(server.Options{
				Listen:    cfg.Listen,
				Processor: a.processor,
				Sweeper:   a.cache,
				Stats:     a.cache,
				SweepOpts: cfg.Sweep.Options(),
				Logger:    logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fitfact.yaml", "path to config file")
	return cmd
}
