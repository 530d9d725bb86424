// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/app"
	"github.com/JakeFAU/content-harvester/internal/config"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/logging"
	"github.com/JakeFAU/content-harvester/internal/telemetry"
	configfile "github.com/JakeFAU/content-harvester/pkg/config"
)

var cfgFile string

// configKeyType is the key for storing the loaded Config in the context.
type configKeyType string

const configKey configKeyType = "config"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context) (app.Summary, error)
	LastSummary(ctx context.Context) (app.Summary, bool)
	CacheDegraded() bool
	ResolveSource(t harvest.SourceType, identifier string) harvest.SourceConfig
	Invalidate(ctx context.Context, source harvest.SourceConfig) string
	Close()
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, app.Deps{}, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Cache-aware parallel content extraction.",
		Long: `harvester pulls recent content from forums, video channels, research
feeds and news/blog feeds in parallel, caches what it fetched, removes
duplicates and irrelevant items, and hands one JSON batch per run to the
downstream summarizer.`,
		SilenceUsage: true,

		// Load configuration once, before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configfile.InitConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("locate config: %w", err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Logging.Development {
				if err := logging.InitLogger(true); err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./harvester.yaml, /etc/harvester/ or $HOME/.harvester/)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newSummaryCmd())

	return cmd
}

// Execute is the main entry point. It exits non-zero when the command fails,
// including a run in which every source failed.
func Execute() {
	if err := logging.InitLogger(false); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	tp, err := telemetry.InitTracerProvider(ctx, "harvester")
	if err != nil {
		logging.L.Warn("Tracing disabled", zap.Error(err))
	}
	err = newRootCmd().ExecuteContext(ctx)
	stop()
	if tp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := tp.Shutdown(shutdownCtx); serr != nil {
			logging.L.Warn("Tracer shutdown failed", zap.Error(serr))
		}
		cancel()
	}
	if err != nil {
		if errors.Is(err, app.ErrAllSourcesFailed) {
			logging.L.Error("Every source failed", zap.Error(err))
		} else {
			logging.L.Error("Command execution failed", zap.Error(err))
		}
		_ = logging.L.Sync()
		os.Exit(1)
	}
	_ = logging.L.Sync()
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return *cfg, nil
}

// parseTypes validates source type names given on the command line. Each
// value may itself be a comma-separated list.
func parseTypes(values []string) ([]harvest.SourceType, error) {
	var out []harvest.SourceType
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t := harvest.SourceType(name)
			if !t.Valid() {
				return nil, fmt.Errorf("unknown source type %q", name)
			}
			out = append(out, t)
		}
	}
	return out, nil
}
