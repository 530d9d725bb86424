// Package processor turns the merged extraction output into the record set
// handed to the summarizer: duplicates removed across sources (and optionally
// across runs), irrelevant records dropped, matches annotated.
package processor

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/metrics"
)

// Config controls dedup and relevance.
type Config struct {
	// Priority ranks source types for dedup ties, highest first. Empty selects
	// DefaultPriority.
	Priority []harvest.SourceType `mapstructure:"priority"`
	Include  []string             `mapstructure:"include"`
	Exclude  []string             `mapstructure:"exclude"`
	// HistoryDays enables cross-run dedup over that many previous days.
	HistoryDays int `mapstructure:"history_days"`
}

// Processor is stateless between calls apart from the optional History.
type Processor struct {
	rank      ranking
	predicate Predicate
	history   *History
	logger    *zap.Logger
}

// New builds a Processor. history may be nil.
func New(cfg Config, history *History, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		rank:      newRanking(cfg.Priority),
		predicate: NewPredicate(cfg.Include, cfg.Exclude),
		history:   history,
		logger:    logger,
	}
}

// Process deduplicates records in priority order, drops anything already
// delivered on a previous day, then applies the relevance predicate. The
// output has unique DedupKeys, and processing it again returns it unchanged.
func (p *Processor) Process(ctx context.Context, records []harvest.ContentRecord) []harvest.ContentRecord {
	metrics.ObserveRecords("input", len(records))

	kept, keys := dedup(records, p.rank)
	metrics.ObserveRecords("deduplicated", len(kept))

	var seen map[string]struct{}
	if p.history != nil {
		seen = p.history.Seen(ctx)
	}

	out := make([]harvest.ContentRecord, 0, len(kept))
	outKeys := make([]string, 0, len(kept))
	var repeats, irrelevant int
	for i, r := range kept {
		if _, ok := seen[keys[i]]; ok {
			repeats++
			continue
		}
		hits, ok := p.predicate.Match(r)
		if !ok {
			irrelevant++
			continue
		}
		out = append(out, annotate(r, hits))
		outKeys = append(outKeys, keys[i])
	}
	metrics.ObserveRecords("relevant", len(out))

	if p.history != nil {
		p.history.Record(ctx, outKeys)
	}

	p.logger.Info("processed records",
		zap.Int("input", len(records)),
		zap.Int("duplicates", len(records)-len(kept)),
		zap.Int("seen_previously", repeats),
		zap.Int("irrelevant", irrelevant),
		zap.Int("output", len(out)),
	)
	return out
}
