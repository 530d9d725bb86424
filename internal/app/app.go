// Package app initializes and holds the long-lived services of a harvest run,
// acting as a dependency injection container for the CLI.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/cache/redis"
	"github.com/JakeFAU/content-harvester/internal/clock/system"
	"github.com/JakeFAU/content-harvester/internal/config"
	"github.com/JakeFAU/content-harvester/internal/extractor"
	"github.com/JakeFAU/content-harvester/internal/handoff"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/id/uuid"
	"github.com/JakeFAU/content-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/content-harvester/internal/processor"
	"github.com/JakeFAU/content-harvester/internal/scheduler"
)

var (
	// ErrNoSources is returned when no enabled source is configured.
	ErrNoSources = errors.New("no enabled sources configured")
	// ErrAllSourcesFailed is returned, wrapped in a *RunError, when every
	// source in a run failed.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// RunError carries the run summary alongside the failure.
type RunError struct {
	Summary Summary
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Summary.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators App needs. Nil fields are built from config by
// New; tests inject fakes.
type Deps struct {
	Extractors scheduler.Extractors
	// Backend is the primary cache tier. Nil with a redis config dials redis;
	// set UseFallbackOnly to run on the in-process tier alone.
	Backend         cache.Backend
	UseFallbackOnly bool
	Store           handoff.BlobStore
	Clock           harvest.Clock
	IDs             harvest.IDGenerator
}

// App holds the shared, long-lived services for a run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     harvest.Clock
	ids       harvest.IDGenerator
	cache     *cache.Manager
	scheduler *scheduler.Scheduler
	processor *processor.Processor
	sink      *handoff.Sink
	closers   []func() error
}

// New builds an App from cfg. It fails fast if a required service cannot be
// initialized; an unreachable cache backend is not such a failure.
func New(ctx context.Context, cfg config.Config, deps Deps, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: deps.Clock, ids: deps.IDs}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}

	backend := deps.Backend
	if backend == nil && !deps.UseFallbackOnly && cfg.Cache.Backend == config.BackendRedis {
		rb, err := redis.New(cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("init cache backend: %w", err)
		}
		a.closers = append(a.closers, rb.Close)
		backend = rb
	}
	a.cache = cache.NewManager(ctx, backend, a.clock, cache.Config{
		OpTimeout:    cfg.Cache.OpTimeout,
		RetryTimeout: cfg.Cache.RetryTimeout,
		Fallback:     cfg.Cache.Fallback,
	}, logger.Named("cache"))

	extractors := deps.Extractors
	if extractors == nil {
		registry, err := extractor.Build(ctx, cfg.Extractors, ratelimit.New(cfg.RateLimit), logger.Named("extractor"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init extractors: %w", err)
		}
		extractors = registry
	}
	a.scheduler = scheduler.New(cfg.Scheduler, extractors, a.cache, logger.Named("scheduler"))

	history := processor.NewHistory(a.cache, a.clock, cfg.Processor.HistoryDays, logger.Named("history"))
	a.processor = processor.New(cfg.Processor, history, logger.Named("processor"))

	store := deps.Store
	if store == nil {
		s, closeStore, err := handoff.NewStore(ctx, cfg.Handoff)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init handoff store: %w", err)
		}
		a.closers = append(a.closers, closeStore)
		store = s
	}
	a.sink = handoff.NewSink(store, cfg.Handoff.Prefix)

	logger.Info("application services initialized",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("cache_degraded", a.cache.Degraded()),
		zap.String("handoff_provider", cfg.Handoff.Provider),
		zap.Int("concurrency", cfg.Scheduler.Concurrency),
	)
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Invalidate drops the cached records for source so the next run refetches it.
func (a *App) Invalidate(ctx context.Context, source harvest.SourceConfig) string {
	key := cache.Key(cache.ClassContent, source)
	a.cache.Invalidate(ctx, key)
	a.logger.Info("cache entry invalidated", zap.String("source", source.Name()), zap.String("key", key))
	return key
}

// ResolveSource returns the configured source with the given type and
// identifier, or a bare source without params when none is configured.
func (a *App) ResolveSource(t harvest.SourceType, identifier string) harvest.SourceConfig {
	for _, s := range a.cfg.Sources {
		if s.Type == t && s.Identifier == identifier {
			return s
		}
	}
	return harvest.SourceConfig{Type: t, Identifier: identifier}
}

// LastSummary returns the summary of the most recent run if it is still
// within the derived TTL.
func (a *App) LastSummary(ctx context.Context) (Summary, bool) {
	payload, ok := a.cache.Get(ctx, lastSummaryKey)
	if !ok {
		return Summary{}, false
	}
	var s Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		a.logger.Warn("discarding undecodable run summary", zap.Error(err))
		a.cache.Invalidate(ctx, lastSummaryKey)
		return Summary{}, false
	}
	return s, true
}

// Close releases the clients opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

// CacheDegraded reports whether the primary cache backend has been given up on.
func (a *App) CacheDegraded() bool {
	return a.cache.Degraded()
}
