package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/handoff"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/telemetry"
)

var lastSummaryKey = cache.DerivedKey("summary", "latest")

// SourceSummary reports the outcome of one source.
type SourceSummary struct {
	Name     string                `json:"name"`
	Type     harvest.SourceType    `json:"type"`
	Status   harvest.OutcomeStatus `json:"status"`
	Kind     harvest.ErrorKind     `json:"kind,omitempty"`
	Message  string                `json:"message,omitempty"`
	Records  int                   `json:"records"`
	Cached   bool                  `json:"cached"`
	Duration time.Duration         `json:"duration"`
}

// Summary describes one completed run.
type Summary struct {
	RunID         string                       `json:"run_id"`
	StartedAt     time.Time                    `json:"started_at"`
	FinishedAt    time.Time                    `json:"finished_at"`
	Sources       []SourceSummary              `json:"sources"`
	Succeeded     int                          `json:"succeeded"`
	Empty         int                          `json:"empty"`
	Failed        int                          `json:"failed"`
	Extracted     int                          `json:"extracted"`
	Delivered     int                          `json:"delivered"`
	CacheStats    map[string]cache.PrefixStats `json:"cache_stats"`
	CacheDegraded bool                         `json:"cache_degraded"`
	HandoffURI    string                       `json:"handoff_uri,omitempty"`
}

// Run executes one harvest over the enabled sources: extract in parallel,
// process the merged records, hand the batch off and report. Per-source
// failures are recorded in the summary; only a run in which every source
// failed returns ErrAllSourcesFailed.
func (a *App) Run(ctx context.Context) (summary Summary, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "harvest.run")
	defer func() {
		span.SetAttributes(
			attribute.String("run.id", summary.RunID),
			attribute.Int("run.failed", summary.Failed),
			attribute.Int("run.delivered", summary.Delivered),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sources := a.cfg.EnabledSources()
	if len(sources) == 0 {
		return Summary{}, ErrNoSources
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))
	summary = Summary{RunID: runID, StartedAt: a.clock.Now()}
	logger.Info("harvest run started", zap.Int("sources", len(sources)))

	outcomes := a.scheduler.Run(ctx, sources)

	var records []harvest.ContentRecord
	for _, out := range outcomes {
		summary.Sources = append(summary.Sources, summarize(out))
		switch out.Status {
		case harvest.StatusSuccess:
			summary.Succeeded++
			records = append(records, out.Records...)
		case harvest.StatusEmpty:
			summary.Empty++
		case harvest.StatusFailed:
			summary.Failed++
		}
	}
	summary.Extracted = len(records)

	if summary.Failed == len(outcomes) {
		a.finish(ctx, logger, &summary)
		return summary, &RunError{Summary: summary, Err: ErrAllSourcesFailed}
	}

	processed := a.processor.Process(ctx, records)
	uri, err := a.sink.Write(ctx, handoff.Batch{
		RunID:       runID,
		GeneratedAt: summary.StartedAt,
		Records:     processed,
	})
	if err != nil {
		a.finish(ctx, logger, &summary)
		return summary, &RunError{Summary: summary, Err: fmt.Errorf("handoff: %w", err)}
	}
	summary.Delivered = len(processed)
	summary.HandoffURI = uri

	a.finish(ctx, logger, &summary)
	return summary, nil
}

// finish stamps the cache state onto summary, logs it and stores it as the
// latest run summary.
func (a *App) finish(ctx context.Context, logger *zap.Logger, summary *Summary) {
	summary.FinishedAt = a.clock.Now()
	summary.CacheStats = a.cache.Stats()
	summary.CacheDegraded = a.cache.Degraded()

	for _, prefix := range a.cache.Prefixes() {
		st := summary.CacheStats[prefix]
		logger.Info("cache stats",
			zap.String("prefix", prefix),
			zap.Int64("hits", st.Hits),
			zap.Int64("misses", st.Misses),
		)
	}
	logger.Info("harvest run finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("empty", summary.Empty),
		zap.Int("failed", summary.Failed),
		zap.Int("extracted", summary.Extracted),
		zap.Int("delivered", summary.Delivered),
		zap.Bool("cache_degraded", summary.CacheDegraded),
		zap.String("handoff_uri", summary.HandoffURI),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	payload, err := json.Marshal(summary)
	if err != nil {
		logger.Error("encode run summary", zap.Error(err))
		return
	}
	a.cache.Put(ctx, lastSummaryKey, payload, a.cfg.Cache.DerivedTTL)
}

func summarize(out harvest.Outcome) SourceSummary {
	return SourceSummary{
		Name:     out.Source.Name(),
		Type:     out.Source.Type,
		Status:   out.Status,
		Kind:     out.Kind,
		Message:  out.Message,
		Records:  len(out.Records),
		Cached:   out.FromCache,
		Duration: out.Duration,
	}
}
