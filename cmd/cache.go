package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/content-harvester/internal/logging"
)

// newCacheCmd groups cache maintenance subcommands.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects and maintains the extraction cache",
	}
	cmd.AddCommand(newCacheInvalidateCmd())
	return cmd
}

func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <type> <identifier>",
		Short: "Drops the cached records of one source so the next run refetches it",
		Long: `Drops the cached records of one source. When the source is configured its
params are used to derive the key; otherwise the key of the bare
type/identifier pair is dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			types, err := parseTypes(args[:1])
			if err != nil {
				return err
			}
			if len(types) != 1 {
				return fmt.Errorf("expected one source type, got %q", args[0])
			}
			cfg, err := resolveConfig(ctx)
			if err != nil {
				return err
			}
			appInstance, err := newApp(ctx, cfg, logging.L)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer appInstance.Close()

			source := appInstance.ResolveSource(types[0], args[1])
			key := appInstance.Invalidate(ctx, source)
			if appInstance.CacheDegraded() {
				logging.L.Warn("cache backend unreachable; only the in-process copy was dropped")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s (%s)\n", source.Name(), key)
			return nil
		},
	}
}

// newSummaryCmd creates the 'summary' subcommand, which prints the most recent
// run summary while it is still cached.
func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Prints the most recent run summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := resolveConfig(ctx)
			if err != nil {
				return err
			}
			appInstance, err := newApp(ctx, cfg, logging.L)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer appInstance.Close()

			summary, ok := appInstance.LastSummary(ctx)
			if !ok {
				return errors.New("no run summary within the derived TTL")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
