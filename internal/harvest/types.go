package harvest

import (
	"fmt"
	"time"
)

// SourceType identifies one category of external content origin.
type SourceType string

// Supported source types. The set is closed and fixed at build time.
const (
	SourceForum      SourceType = "forum"
	SourceVideo      SourceType = "video"
	SourceShortVideo SourceType = "short_video"
	SourceResearch   SourceType = "research"
	SourceNewsFeed   SourceType = "news_feed"
	SourceBlogFeed   SourceType = "blog_feed"
)

// AllSourceTypes returns every known source type in declaration order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceForum,
		SourceVideo,
		SourceShortVideo,
		SourceResearch,
		SourceNewsFeed,
		SourceBlogFeed,
	}
}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	for _, known := range AllSourceTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// SourceConfig describes one configured source. It is loaded once at startup
// and never mutated afterwards.
type SourceConfig struct {
	Type       SourceType        `json:"type" mapstructure:"type"`
	Identifier string            `json:"identifier" mapstructure:"identifier"`
	MaxItems   int               `json:"max_items" mapstructure:"max_items"`
	Params     map[string]string `json:"params,omitempty" mapstructure:"params"`
}

// Name returns a stable human-readable label such as "forum/golang".
func (s SourceConfig) Name() string {
	return fmt.Sprintf("%s/%s", s.Type, s.Identifier)
}

// Param returns the named extra parameter or def when it is unset.
func (s SourceConfig) Param(name, def string) string {
	if v, ok := s.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// ContentRecord is the normalized unit of content produced by extractors.
type ContentRecord struct {
	SourceType  SourceType `json:"source_type"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"published_at"`
	Tags        []string   `json:"tags,omitempty"`
	Relevance   int        `json:"relevance,omitempty"`
}

// CacheEntry is a payload stored by the cache manager together with the
// freshness metadata needed to decide whether it is still live.
type CacheEntry struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
}

// Expired reports whether the entry is stale at now. An entry whose age equals
// its TTL is still fresh.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}
