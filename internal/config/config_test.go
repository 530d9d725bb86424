package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-harvester/internal/extractor"
	"github.com/JakeFAU/content-harvester/internal/handoff"
	"github.com/JakeFAU/content-harvester/internal/harvest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Scheduler.ContentTTL)
	assert.Equal(t, time.Hour, cfg.Cache.DerivedTTL)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 1024, cfg.Cache.Fallback.MaxEntries)
	assert.Equal(t, 2*time.Second, cfg.Cache.OpTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.RetryTimeout)
	assert.Equal(t, 15*time.Second, cfg.Extractors.Client.Timeout)
	assert.Equal(t, 3, cfg.Extractors.Client.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.Extractors.BodyLimit)
	assert.Equal(t, extractor.DefaultRedditURL, cfg.Extractors.RedditURL)
	assert.Equal(t, extractor.DefaultArxivURL, cfg.Extractors.ArxivURL)
	assert.Equal(t, handoff.ProviderLocal, cfg.Handoff.Provider)
	assert.Equal(t, "data/handoff", cfg.Handoff.Local.BaseDir)
	assert.Empty(t, cfg.Sources)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logging:
  development: true
metrics:
  addr: ":9102"
scheduler:
  concurrency: 3
  task_timeout: 10s
  run_timeout: 2m
  content_ttl: 24h
cache:
  backend: memory
  derived_ttl: 30m
  fallback:
    max_entries: 64
rate_limit:
  default_rps: 2
  default_burst: 4
  per_source:
    forum:
      rps: 0.5
      burst: 1
extractors:
  body_limit: 500
  http:
    user_agent: test-agent
processor:
  priority: [research, forum]
  include: [golang, rust]
  exclude: [sponsored]
  history_days: 7
handoff:
  provider: memory
  prefix: out
enabled:
  video: false
sources:
  - type: forum
    identifier: golang
    max_items: 10
    params:
      sort: new
  - type: video
    identifier: UCabcdefghijklmnopqrstuv
  - type: news_feed
    identifier: https://example.com/rss
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
	assert.Equal(t, 3, cfg.Scheduler.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.ContentTTL)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DerivedTTL)
	assert.Equal(t, 64, cfg.Cache.Fallback.MaxEntries)
	assert.InDelta(t, 2.0, cfg.RateLimit.DefaultRPS, 1e-9)
	assert.Equal(t, 1, cfg.RateLimit.PerKey["forum"].Burst)
	assert.Equal(t, 500, cfg.Extractors.BodyLimit)
	assert.Equal(t, "test-agent", cfg.Extractors.Client.UserAgent)
	assert.Equal(t, []harvest.SourceType{harvest.SourceResearch, harvest.SourceForum}, cfg.Processor.Priority)
	assert.Equal(t, []string{"golang", "rust"}, cfg.Processor.Include)
	assert.Equal(t, 7, cfg.Processor.HistoryDays)
	assert.Equal(t, "out", cfg.Handoff.Prefix)

	require.Len(t, cfg.Sources, 3)
	assert.Equal(t, harvest.SourceForum, cfg.Sources[0].Type)
	assert.Equal(t, "golang", cfg.Sources[0].Identifier)
	assert.Equal(t, 10, cfg.Sources[0].MaxItems)
	assert.Equal(t, "new", cfg.Sources[0].Param("sort", "top"))

	assert.False(t, cfg.TypeEnabled(harvest.SourceVideo))
	assert.True(t, cfg.TypeEnabled(harvest.SourceForum))
	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 2)
	assert.Equal(t, "forum/golang", enabled[0].Name())
	assert.Equal(t, "news_feed/https://example.com/rss", enabled[1].Name())
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "plain-key")
	t.Setenv("HARVESTER_REDDIT_USER_AGENT", "harvester-test/2.0")
	t.Setenv("HARVESTER_SCHEDULER_CONCURRENCY", "9")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "plain-key", cfg.Extractors.YouTube.APIKey)
	assert.Equal(t, "harvester-test/2.0", cfg.Extractors.Client.UserAgent)
	assert.Equal(t, 9, cfg.Scheduler.Concurrency)
}

func TestLoadPrefixedCredentialWins(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "plain-key")
	t.Setenv("HARVESTER_YOUTUBE_API_KEY", "prefixed-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed-key", cfg.Extractors.YouTube.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadRejectsInvalidSources(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
sources:
  - type: podcast
    identifier: x
  - type: forum
    identifier: ""
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source type "podcast"`)
	assert.Contains(t, err.Error(), "sources[1]: identifier is required")
}

func validConfig() Config {
	cfg := Config{}
	cfg.Scheduler.Concurrency = 1
	cfg.Scheduler.TaskTimeout = time.Second
	cfg.Scheduler.ContentTTL = time.Hour
	cfg.Cache.Backend = BackendMemory
	cfg.Cache.DerivedTTL = time.Hour
	cfg.Extractors.Client.Timeout = time.Second
	cfg.Handoff.Provider = handoff.ProviderMemory
	return cfg
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid concurrency", func(c *Config) { c.Scheduler.Concurrency = 0 }, "scheduler.concurrency"},
		{"invalid task timeout", func(c *Config) { c.Scheduler.TaskTimeout = 0 }, "scheduler.task_timeout"},
		{"negative run timeout", func(c *Config) { c.Scheduler.RunTimeout = -time.Second }, "scheduler.run_timeout"},
		{"invalid content ttl", func(c *Config) { c.Scheduler.ContentTTL = 0 }, "scheduler.content_ttl"},
		{"invalid derived ttl", func(c *Config) { c.Cache.DerivedTTL = 0 }, "cache.derived_ttl"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = BackendRedis }, "cache.redis.addr"},
		{"invalid http timeout", func(c *Config) { c.Extractors.Client.Timeout = 0 }, "extractors.http.timeout"},
		{"negative history", func(c *Config) { c.Processor.HistoryDays = -1 }, "processor.history_days"},
		{"unknown priority type", func(c *Config) { c.Processor.Priority = []harvest.SourceType{"podcast"} }, "processor.priority"},
		{"local without dir", func(c *Config) { c.Handoff.Provider = handoff.ProviderLocal }, "handoff.local.base_dir"},
		{"gcs without bucket", func(c *Config) { c.Handoff.Provider = handoff.ProviderGCS }, "handoff.gcs.bucket"},
		{"unknown handoff", func(c *Config) { c.Handoff.Provider = "s3" }, "handoff.provider"},
		{"unknown enabled type", func(c *Config) { c.Enabled = map[string]bool{"podcast": true} }, "enabled"},
		{"negative max items", func(c *Config) {
			c.Sources = []harvest.SourceConfig{{Type: harvest.SourceForum, Identifier: "go", MaxItems: -1}}
		}, "max_items"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRestrict(t *testing.T) {
	t.Parallel()

	base := validConfig()
	base.Enabled = map[string]bool{"video": false}
	base.Sources = []harvest.SourceConfig{
		{Type: harvest.SourceForum, Identifier: "golang"},
		{Type: harvest.SourceVideo, Identifier: "go"},
		{Type: harvest.SourceResearch, Identifier: "cs.DC"},
		{Type: harvest.SourceNewsFeed, Identifier: "https://example.com/rss"},
	}

	only := base
	only.Restrict([]harvest.SourceType{harvest.SourceForum, harvest.SourceVideo}, nil)
	names := func(c Config) []string {
		var out []string
		for _, s := range c.EnabledSources() {
			out = append(out, s.Name())
		}
		return out
	}
	assert.Equal(t, []string{"forum/golang"}, names(only), "only cannot re-enable a disabled type")

	skip := base
	skip.Restrict(nil, []harvest.SourceType{harvest.SourceResearch})
	assert.Equal(t, []string{"forum/golang", "news_feed/https://example.com/rss"}, names(skip))

	assert.False(t, base.Enabled["research"], "original map untouched")
	assert.Len(t, base.Enabled, 1)
}
