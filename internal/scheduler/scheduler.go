// Package scheduler runs one cache-aware extraction task per configured source
// on a bounded worker pool and collects exactly one outcome per source.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/metrics"
	"github.com/JakeFAU/content-harvester/internal/telemetry"
)

const (
	defaultConcurrency = 4
	defaultTaskTimeout = 30 * time.Second
	defaultContentTTL  = 72 * time.Hour
)

// Config bounds a run.
type Config struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `mapstructure:"concurrency"`
	// TaskTimeout bounds a single extractor fetch.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// RunTimeout bounds the whole run. Zero disables the run deadline.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// ContentTTL is the cache lifetime of extracted records.
	ContentTTL time.Duration `mapstructure:"content_ttl"`
}

// Extractors resolves the extractor for a source type.
type Extractors interface {
	Lookup(t harvest.SourceType) (harvest.Extractor, bool)
}

// Scheduler fans extraction tasks out to a fixed pool of workers.
type Scheduler struct {
	cfg        Config
	extractors Extractors
	cache      harvest.Cache
	logger     *zap.Logger
}

type result struct {
	index   int
	outcome harvest.Outcome
}

// New creates a Scheduler.
func New(cfg Config, extractors Extractors, c harvest.Cache, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = defaultContentTTL
	}
	return &Scheduler{
		cfg:        cfg,
		extractors: extractors,
		cache:      c,
		logger:     logger,
	}
}

// Run executes one task per source and returns their outcomes; out[i] belongs
// to sources[i]. Failures never cancel sibling tasks. When the run deadline
// passes, or ctx is cancelled, every pending task is reported as a timeout and
// Run returns without waiting for the workers.
//
// Concurrency bounds the extractor calls in flight only for extractors that
// honour ctx. A fetch that outlives TaskTimeout is abandoned: its worker moves
// on to the next task while the abandoned call finishes in the background.
func (s *Scheduler) Run(ctx context.Context, sources []harvest.SourceConfig) []harvest.Outcome {
	outcomes := make([]harvest.Outcome, len(sources))
	if len(sources) == 0 {
		return outcomes
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	tasks := make(chan int)
	// Buffered so workers never block on a collector that has already returned.
	results := make(chan result, len(sources))

	workers := min(s.cfg.Concurrency, len(sources))
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range tasks {
				results <- result{index: idx, outcome: s.runTask(runCtx, sources[idx])}
			}
			return nil
		})
	}
	go func() {
		defer close(tasks)
		for i := range sources {
			select {
			case tasks <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()
	go func() {
		_ = g.Wait()
		close(results)
	}()

	done := make([]bool, len(sources))
	s.collect(runCtx, results, outcomes, done)

	for i := range outcomes {
		if !done[i] {
			outcomes[i] = harvest.Failed(sources[i], harvest.KindTimeout, deadlineMessage(runCtx))
		}
		s.observe(outcomes[i])
	}
	return outcomes
}

// collect gathers results until every task reported or the run context ends.
// Results already delivered when the deadline fires are still kept.
func (s *Scheduler) collect(runCtx context.Context, results <-chan result, outcomes []harvest.Outcome, done []bool) {
	accept := func(r result) {
		outcomes[r.index] = r.outcome
		done[r.index] = true
	}
	for pending := len(outcomes); pending > 0; pending-- {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			accept(r)
		case <-runCtx.Done():
			for {
				select {
				case r, ok := <-results:
					if !ok {
						return
					}
					accept(r)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, source harvest.SourceConfig) harvest.Outcome {
	metrics.IncActiveTasks()
	defer metrics.DecActiveTasks()
	ctx, span := telemetry.Tracer().Start(ctx, "harvest.extract", trace.WithAttributes(
		attribute.String("source.type", string(source.Type)),
		attribute.String("source.name", source.Name()),
	))
	defer span.End()
	start := time.Now()

	out := s.execute(ctx, source)
	out.Source = source
	out.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("outcome.status", string(out.Status)),
		attribute.Int("outcome.records", len(out.Records)),
		attribute.Bool("outcome.cached", out.FromCache),
	)
	if out.Failed() {
		span.SetStatus(codes.Error, string(out.Kind)+": "+out.Message)
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, source harvest.SourceConfig) harvest.Outcome {
	key := cache.Key(cache.ClassContent, source)
	if out, ok := s.fromCache(ctx, key, source); ok {
		return out
	}

	extractor, ok := s.extractors.Lookup(source.Type)
	if !ok {
		return harvest.Failed(source, harvest.KindUnknown, fmt.Sprintf("no extractor registered for source type %q", source.Type))
	}

	records, err := s.fetch(ctx, extractor, source)
	if err != nil {
		return harvest.Failed(source, harvest.KindOf(err), err.Error())
	}
	if source.MaxItems > 0 && len(records) > source.MaxItems {
		records = records[:source.MaxItems]
	}
	if records == nil {
		records = []harvest.ContentRecord{}
	}

	// Empty results are cached too so a quiet source is not polled every run.
	payload, err := json.Marshal(records)
	if err != nil {
		s.logger.Error("encode records for cache", zap.String("source", source.Name()), zap.Error(err))
	} else {
		s.cache.Put(ctx, key, payload, s.cfg.ContentTTL)
	}
	return harvest.Success(source, records)
}

func (s *Scheduler) fromCache(ctx context.Context, key string, source harvest.SourceConfig) (harvest.Outcome, bool) {
	payload, ok := s.cache.Get(ctx, key)
	if !ok {
		return harvest.Outcome{}, false
	}
	var records []harvest.ContentRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		s.logger.Warn("discarding undecodable cached records",
			zap.String("source", source.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
		s.cache.Invalidate(ctx, key)
		return harvest.Outcome{}, false
	}
	out := harvest.Success(source, records)
	out.FromCache = true
	return out, true
}

type fetchResult struct {
	records []harvest.ContentRecord
	err     error
}

// fetch runs the extractor under TaskTimeout. An extractor that ignores its
// context is abandoned when the timeout fires; its late result is discarded.
func (s *Scheduler) fetch(ctx context.Context, extractor harvest.Extractor, source harvest.SourceConfig) ([]harvest.ContentRecord, error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("extractor panicked", zap.String("source", source.Name()), zap.Any("panic", r))
				ch <- fetchResult{err: harvest.NewExtractError(harvest.KindUnknown, nil, "extractor panic: %v", r)}
			}
		}()
		records, err := extractor.Fetch(taskCtx, source)
		ch <- fetchResult{records: records, err: err}
	}()

	select {
	case res := <-ch:
		return res.records, res.err
	case <-taskCtx.Done():
		return nil, harvest.NewExtractError(harvest.KindTimeout, taskCtx.Err(), "task for %s exceeded %s", source.Name(), s.cfg.TaskTimeout)
	}
}

func (s *Scheduler) observe(out harvest.Outcome) {
	metrics.ObserveExtraction(string(out.Source.Type), string(out.Status), string(out.Kind), out.Duration)
	fields := []zap.Field{
		zap.String("source", out.Source.Name()),
		zap.String("status", string(out.Status)),
		zap.Int("records", len(out.Records)),
		zap.Bool("cached", out.FromCache),
		zap.Duration("duration", out.Duration),
	}
	if out.Failed() {
		s.logger.Warn("source failed", append(fields,
			zap.String("kind", string(out.Kind)),
			zap.String("message", out.Message),
		)...)
		return
	}
	s.logger.Info("source completed", fields...)
}

func deadlineMessage(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return "run cancelled"
}
