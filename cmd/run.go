package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/api"
	"github.com/JakeFAU/content-harvester/internal/logging"
)

type runOptions struct {
	only        []string
	skip        []string
	concurrency int
	metricsAddr string
}

// newRunCmd creates the 'run' subcommand, which performs one harvest.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one harvest over the configured sources",
		Long: `Extracts every enabled source in parallel, serving fresh results from the
cache, then deduplicates, filters and hands off the merged records. The run
summary is printed as JSON. The exit status is 1 only when every source failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "run only these source types (comma-separated)")
	cmd.Flags().StringSliceVar(&opts.skip, "skip", nil, "skip these source types (comma-separated)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "override scheduler.concurrency")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while running")
	return cmd
}

func runHarvest(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}
	only, err := parseTypes(opts.only)
	if err != nil {
		return fmt.Errorf("--only: %w", err)
	}
	skip, err := parseTypes(opts.skip)
	if err != nil {
		return fmt.Errorf("--skip: %w", err)
	}
	cfg.Restrict(only, skip)
	if opts.concurrency > 0 {
		cfg.Scheduler.Concurrency = opts.concurrency
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	logger := logging.L
	appInstance, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer appInstance.Close()

	if cfg.Metrics.Addr != "" {
		serverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		server := api.NewServer(appInstance, logger.Named("api"))
		go func() {
			if err := server.ListenAndServe(serverCtx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server failed", zap.Error(err))
			}
		}()
	}

	summary, runErr := appInstance.Run(ctx)
	if summary.RunID != "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("print summary: %w", err)
		}
	}
	return runErr
}
