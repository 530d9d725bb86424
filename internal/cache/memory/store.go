// Package memory implements the bounded in-process fallback tier of the cache.
package memory

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

// Config bounds the store so repeated backend outages cannot grow memory
// without limit.
type Config struct {
	// MaxEntries caps live entries per prefix. Zero means 1024.
	MaxEntries int `mapstructure:"max_entries"`
	// MaxAge drops entries written longer ago than this regardless of TTL.
	// Zero disables the age bound.
	MaxAge time.Duration `mapstructure:"max_age"`
	// Prefix maps a key to its shard. Defaults to the text before the last ':'.
	Prefix func(key string) string `mapstructure:"-"`
}

const defaultMaxEntries = 1024

// Store is a sharded TTL map. Each prefix has its own lock so unrelated
// source types never contend.
type Store struct {
	cfg    Config
	mu     sync.RWMutex
	shards map[string]*shard
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest write
}

// New creates a Store.
func New(cfg Config) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.Prefix == nil {
		cfg.Prefix = defaultPrefix
	}
	return &Store{
		cfg:    cfg,
		shards: make(map[string]*shard),
	}
}

// Get returns a copy of the entry if it is present and fresh at now. Expired
// entries are evicted and reported as misses.
func (s *Store) Get(key string, now time.Time) (harvest.CacheEntry, bool) {
	sh := s.shard(key, false)
	if sh == nil {
		return harvest.CacheEntry{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.entries[key]
	if !ok {
		return harvest.CacheEntry{}, false
	}
	entry := elem.Value.(harvest.CacheEntry)
	if entry.Expired(now) || s.tooOld(entry, now) {
		sh.remove(key)
		return harvest.CacheEntry{}, false
	}
	return cloneEntry(entry), true
}

// Put stores a copy of entry as the newest write, then evicts by age and by
// count, oldest write first.
func (s *Store) Put(entry harvest.CacheEntry, now time.Time) {
	sh := s.shard(entry.Key, true)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.remove(entry.Key)
	sh.entries[entry.Key] = sh.order.PushBack(cloneEntry(entry))

	for front := sh.order.Front(); front != nil; front = sh.order.Front() {
		oldest := front.Value.(harvest.CacheEntry)
		if len(sh.entries) <= s.cfg.MaxEntries && !s.tooOld(oldest, now) {
			break
		}
		sh.remove(oldest.Key)
	}
}

// Delete removes key if present.
func (s *Store) Delete(key string) {
	sh := s.shard(key, false)
	if sh == nil {
		return
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.remove(key)
}

// Len returns the number of stored entries across all shards, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

func (s *Store) shard(key string, create bool) *shard {
	prefix := s.cfg.Prefix(key)

	s.mu.RLock()
	sh, ok := s.shards[prefix]
	s.mu.RUnlock()
	if ok || !create {
		return sh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok = s.shards[prefix]; ok {
		return sh
	}
	sh = &shard{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	s.shards[prefix] = sh
	return sh
}

func (s *Store) tooOld(entry harvest.CacheEntry, now time.Time) bool {
	return s.cfg.MaxAge > 0 && now.Sub(entry.StoredAt) > s.cfg.MaxAge
}

func (sh *shard) remove(key string) {
	if elem, ok := sh.entries[key]; ok {
		sh.order.Remove(elem)
		delete(sh.entries, key)
	}
}

func cloneEntry(entry harvest.CacheEntry) harvest.CacheEntry {
	entry.Payload = append([]byte(nil), entry.Payload...)
	return entry
}

func defaultPrefix(key string) string {
	if idx := strings.LastIndex(key, ":"); idx > 0 {
		return key[:idx]
	}
	return key
}
