package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/cache/memory"
	"github.com/JakeFAU/content-harvester/internal/clock/system"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/metrics"
)

// ErrNotFound is returned by a Backend when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ErrBackendUnavailable marks a backend that failed its retry and is no
// longer consulted. It never escapes the Manager.
var ErrBackendUnavailable = errors.New("cache: backend unavailable")

// Backend is the minimal contract required from the primary store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Config tunes backend call timeouts and the fallback bounds.
type Config struct {
	// OpTimeout bounds a single backend call.
	OpTimeout time.Duration
	// RetryTimeout bounds the one retry issued after a backend failure.
	RetryTimeout time.Duration
	// Fallback bounds the in-process store.
	Fallback memory.Config
}

// PrefixStats counts lookups for one key prefix.
type PrefixStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type prefixCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// envelope carries freshness metadata with the payload so the manager's
// clock, not the backend's, decides expiry.
type envelope struct {
	Payload  []byte        `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Manager is the two-tier cache. It is safe for concurrent use.
type Manager struct {
	backend  Backend
	fallback *memory.Store
	clock    harvest.Clock
	cfg      Config
	logger   *zap.Logger

	available atomic.Bool
	degraded  atomic.Bool

	statsMu sync.RWMutex
	stats   map[string]*prefixCounters
}

var _ harvest.Cache = (*Manager)(nil)

// NewManager builds a Manager and performs the startup liveness check. A nil
// backend, or one that fails Ping and its retry, leaves the manager serving
// from the fallback store for its whole lifetime.
func NewManager(ctx context.Context, backend Backend, clock harvest.Clock, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 250 * time.Millisecond
	}
	if cfg.Fallback.Prefix == nil {
		cfg.Fallback.Prefix = PrefixOf
	}
	m := &Manager{
		backend:  backend,
		fallback: memory.New(cfg.Fallback),
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		stats:    make(map[string]*prefixCounters),
	}
	if backend == nil {
		logger.Info("no cache backend configured; using in-process store only")
		return m
	}
	m.available.Store(true)
	if err := m.call(ctx, backend.Ping); err != nil {
		return m
	}
	metrics.SetBackendDegraded(false)
	logger.Info("cache backend reachable")
	return m
}

// Get returns the payload stored under key if it is present and fresh.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, ok := m.lookup(ctx, key)
	m.record(key, ok)
	return payload, ok
}

// Put stores payload under key for ttl in the backend (when reachable) and
// mirrors it into the fallback store. Non-positive TTLs are ignored.
func (m *Manager) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		m.logger.Debug("cache put skipped: non-positive ttl", zap.String("key", key))
		return
	}
	now := m.clock.Now()
	entry := harvest.CacheEntry{Key: key, Payload: payload, StoredAt: now, TTL: ttl}

	if m.available.Load() {
		raw, err := json.Marshal(envelope{Payload: payload, StoredAt: now, TTL: ttl})
		if err != nil {
			m.logger.Error("encode cache envelope", zap.String("key", key), zap.Error(err))
		} else if err := m.call(ctx, func(ctx context.Context) error {
			return m.backend.Set(ctx, key, raw, ttl)
		}); err != nil && !errors.Is(err, ErrBackendUnavailable) {
			m.logger.Debug("cache backend set failed", zap.String("key", key), zap.Error(err))
		}
	}
	m.fallback.Put(entry, now)
}

// Invalidate removes key from both tiers.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	m.evict(ctx, key)
}

// Stats returns a snapshot of hit/miss counts per key prefix.
func (m *Manager) Stats() map[string]PrefixStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	out := make(map[string]PrefixStats, len(m.stats))
	for prefix, c := range m.stats {
		out[prefix] = PrefixStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	}
	return out
}

// Prefixes returns the prefixes with recorded lookups, sorted.
func (m *Manager) Prefixes() []string {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	out := make([]string, 0, len(m.stats))
	for prefix := range m.stats {
		out = append(out, prefix)
	}
	sort.Strings(out)
	return out
}

// Degraded reports whether a configured backend has been given up on.
func (m *Manager) Degraded() bool {
	return m.degraded.Load()
}

func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	if m.available.Load() {
		var raw []byte
		err := m.call(ctx, func(ctx context.Context) error {
			var getErr error
			raw, getErr = m.backend.Get(ctx, key)
			return getErr
		})
		switch {
		case err == nil:
			return m.decode(ctx, key, raw)
		case errors.Is(err, ErrNotFound):
			return nil, false
		default:
			// Unavailable or caller cancelled: the fallback answers.
		}
	}
	entry, ok := m.fallback.Get(key, m.clock.Now())
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

func (m *Manager) decode(ctx context.Context, key string, raw []byte) ([]byte, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		m.evict(ctx, key)
		return nil, false
	}
	entry := harvest.CacheEntry{Key: key, Payload: env.Payload, StoredAt: env.StoredAt, TTL: env.TTL}
	if entry.Expired(m.clock.Now()) {
		m.evict(ctx, key)
		return nil, false
	}
	return entry.Payload, true
}

func (m *Manager) evict(ctx context.Context, key string) {
	if m.available.Load() {
		if err := m.call(ctx, func(ctx context.Context) error {
			return m.backend.Del(ctx, key)
		}); err != nil && !errors.Is(err, ErrBackendUnavailable) {
			m.logger.Debug("cache backend del failed", zap.String("key", key), zap.Error(err))
		}
	}
	m.fallback.Delete(key)
}

// call runs op against the backend with OpTimeout, retries once with
// RetryTimeout on a backend-level error, and marks the backend unavailable if
// the retry also fails. A cancelled caller context is not a backend failure.
func (m *Manager) call(ctx context.Context, op func(context.Context) error) error {
	err := m.attempt(ctx, m.cfg.OpTimeout, op)
	if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return err
	}
	if !m.available.Load() {
		return ErrBackendUnavailable
	}
	err = m.attempt(ctx, m.cfg.RetryTimeout, op)
	if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return err
	}
	m.markUnavailable(err)
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (m *Manager) attempt(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(opCtx)
}

func (m *Manager) markUnavailable(cause error) {
	m.available.Store(false)
	if m.degraded.CompareAndSwap(false, true) {
		metrics.SetBackendDegraded(true)
		m.logger.Warn("cache backend unavailable; serving from in-process store for the rest of the run",
			zap.Error(cause),
		)
	}
}

func (m *Manager) record(key string, hit bool) {
	prefix := PrefixOf(key)
	counters := m.counters(prefix)
	if hit {
		counters.hits.Add(1)
	} else {
		counters.misses.Add(1)
	}
	metrics.ObserveCacheLookup(prefix, hit)
}

func (m *Manager) counters(prefix string) *prefixCounters {
	m.statsMu.RLock()
	c, ok := m.stats[prefix]
	m.statsMu.RUnlock()
	if ok {
		return c
	}
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if c, ok = m.stats[prefix]; ok {
		return c
	}
	c = &prefixCounters{}
	m.stats[prefix] = c
	return c
}
