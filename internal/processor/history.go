package processor

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/clock/system"
	"github.com/JakeFAU/content-harvester/internal/harvest"
)

const historyPrefix = "history"

// History remembers the DedupKeys handed off on each day so later runs can
// drop content that was already delivered. Entries live in the cache's
// derived namespace, one per UTC date.
type History struct {
	cache  harvest.Cache
	clock  harvest.Clock
	days   int
	logger *zap.Logger
}

// NewHistory returns a History that looks back days days. It returns nil when
// days is not positive, which disables cross-run dedup.
func NewHistory(c harvest.Cache, clock harvest.Clock, days int, logger *zap.Logger) *History {
	if days <= 0 || c == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &History{cache: c, clock: clock, days: days, logger: logger}
}

// HistoryKey is the cache key holding the keys delivered on day.
func HistoryKey(day time.Time) string {
	return cache.DerivedKey(historyPrefix, day.UTC().Format(time.DateOnly))
}

// Seen returns the keys recorded on any of the previous days. Today is
// excluded so reprocessing within a day is idempotent.
func (h *History) Seen(ctx context.Context) map[string]struct{} {
	seen := make(map[string]struct{})
	today := h.clock.Now().UTC()
	for d := 1; d <= h.days; d++ {
		for _, key := range h.load(ctx, today.AddDate(0, 0, -d)) {
			seen[key] = struct{}{}
		}
	}
	return seen
}

// Record merges keys into today's entry.
func (h *History) Record(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	today := h.clock.Now().UTC()
	merged := make(map[string]struct{}, len(keys))
	for _, key := range h.load(ctx, today) {
		merged[key] = struct{}{}
	}
	for _, key := range keys {
		merged[key] = struct{}{}
	}
	out := make([]string, 0, len(merged))
	for key := range merged {
		out = append(out, key)
	}
	sort.Strings(out)

	payload, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("encode dedup history", zap.Error(err))
		return
	}
	// Keep each day's entry until it falls out of every future lookback.
	ttl := time.Duration(h.days+1) * 24 * time.Hour
	h.cache.Put(ctx, HistoryKey(today), payload, ttl)
}

func (h *History) load(ctx context.Context, day time.Time) []string {
	key := HistoryKey(day)
	payload, ok := h.cache.Get(ctx, key)
	if !ok {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(payload, &keys); err != nil {
		h.logger.Warn("discarding corrupt dedup history", zap.String("key", key), zap.Error(err))
		h.cache.Invalidate(ctx, key)
		return nil
	}
	return keys
}
