// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/content-harvester/internal/cache/memory"
	"github.com/JakeFAU/content-harvester/internal/cache/redis"
	"github.com/JakeFAU/content-harvester/internal/extractor"
	"github.com/JakeFAU/content-harvester/internal/handoff"
	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/content-harvester/internal/processor"
	"github.com/JakeFAU/content-harvester/internal/scheduler"
)

// EnvPrefix namespaces every environment override, e.g.
// HARVESTER_SCHEDULER_CONCURRENCY=8.
const EnvPrefix = "HARVESTER"

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig          `mapstructure:"logging"`
	Metrics    MetricsConfig          `mapstructure:"metrics"`
	Scheduler  scheduler.Config       `mapstructure:"scheduler"`
	Cache      CacheConfig            `mapstructure:"cache"`
	RateLimit  ratelimit.Config       `mapstructure:"rate_limit"`
	Extractors extractor.Config       `mapstructure:"extractors"`
	Processor  processor.Config       `mapstructure:"processor"`
	Handoff    handoff.Config         `mapstructure:"handoff"`
	Sources    []harvest.SourceConfig `mapstructure:"sources"`
	// Enabled switches whole source types on or off. Types not listed are on.
	Enabled map[string]bool `mapstructure:"enabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics while a run executes. Empty
	// disables the server.
	Addr string `mapstructure:"addr"`
}

// CacheConfig selects the primary backend and tunes both tiers.
type CacheConfig struct {
	Backend      string        `mapstructure:"backend"`
	OpTimeout    time.Duration `mapstructure:"op_timeout"`
	RetryTimeout time.Duration `mapstructure:"retry_timeout"`
	// DerivedTTL is the lifetime of derived payloads such as run summaries.
	DerivedTTL time.Duration `mapstructure:"derived_ttl"`
	Fallback   memory.Config `mapstructure:"fallback"`
	Redis      redis.Config  `mapstructure:"redis"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindCredentials(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.addr", "")

	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("scheduler.task_timeout", "30s")
	v.SetDefault("scheduler.run_timeout", "5m")
	v.SetDefault("scheduler.content_ttl", "72h")

	v.SetDefault("cache.backend", BackendRedis)
	v.SetDefault("cache.op_timeout", "2s")
	v.SetDefault("cache.retry_timeout", "250ms")
	v.SetDefault("cache.derived_ttl", "1h")
	v.SetDefault("cache.fallback.max_entries", 1024)
	v.SetDefault("cache.fallback.max_age", "72h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 0)

	v.SetDefault("rate_limit.default_rps", 1.0)
	v.SetDefault("rate_limit.default_burst", 2)

	v.SetDefault("extractors.http.user_agent", "content-harvester/1.0 (+https://github.com/JakeFAU/content-harvester)")
	v.SetDefault("extractors.http.timeout", "15s")
	v.SetDefault("extractors.http.max_body_bytes", 8<<20)
	v.SetDefault("extractors.http.retry.max_attempts", 3)
	v.SetDefault("extractors.http.retry.base_delay", "250ms")
	v.SetDefault("extractors.http.retry.max_delay", "5s")
	v.SetDefault("extractors.body_limit", 2000)
	v.SetDefault("extractors.reddit_url", extractor.DefaultRedditURL)
	v.SetDefault("extractors.arxiv_url", extractor.DefaultArxivURL)
	v.SetDefault("extractors.youtube.api_key", "")
	v.SetDefault("extractors.youtube.endpoint", "")

	v.SetDefault("processor.history_days", 0)

	v.SetDefault("handoff.provider", handoff.ProviderLocal)
	v.SetDefault("handoff.prefix", "batches")
	v.SetDefault("handoff.local.base_dir", "data/handoff")
	v.SetDefault("handoff.gcs.bucket", "")
}

// bindCredentials maps the conventional credential variables onto their
// config keys. The prefixed name wins when both are set.
func bindCredentials(v *viper.Viper) error {
	bindings := map[string][]string{
		"extractors.youtube.api_key": {EnvPrefix + "_YOUTUBE_API_KEY", "YOUTUBE_API_KEY"},
		"extractors.http.user_agent": {EnvPrefix + "_REDDIT_USER_AGENT", EnvPrefix + "_EXTRACTORS_HTTP_USER_AGENT"},
		"cache.redis.password":       {EnvPrefix + "_REDIS_PASSWORD", EnvPrefix + "_CACHE_REDIS_PASSWORD"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("scheduler.concurrency must be > 0")
	}
	if c.Scheduler.TaskTimeout <= 0 {
		return fmt.Errorf("scheduler.task_timeout must be > 0")
	}
	if c.Scheduler.RunTimeout < 0 {
		return fmt.Errorf("scheduler.run_timeout must be >= 0")
	}
	if c.Scheduler.ContentTTL <= 0 {
		return fmt.Errorf("scheduler.content_ttl must be > 0")
	}
	if c.Cache.DerivedTTL <= 0 {
		return fmt.Errorf("cache.derived_ttl must be > 0")
	}
	switch c.Cache.Backend {
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr must be set when cache.backend is %q", BackendRedis)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendRedis, BackendMemory, c.Cache.Backend)
	}
	if c.Extractors.Client.Timeout <= 0 {
		return fmt.Errorf("extractors.http.timeout must be > 0")
	}
	if c.Processor.HistoryDays < 0 {
		return fmt.Errorf("processor.history_days must be >= 0")
	}
	for _, t := range c.Processor.Priority {
		if !t.Valid() {
			return fmt.Errorf("processor.priority: unknown source type %q", t)
		}
	}
	switch c.Handoff.Provider {
	case handoff.ProviderLocal:
		if c.Handoff.Local.BaseDir == "" {
			return fmt.Errorf("handoff.local.base_dir must be set for the local provider")
		}
	case handoff.ProviderGCS:
		if c.Handoff.GCS.Bucket == "" {
			return fmt.Errorf("handoff.gcs.bucket must be set for the gcs provider")
		}
	case handoff.ProviderMemory:
	default:
		return fmt.Errorf("unknown handoff.provider %q", c.Handoff.Provider)
	}
	for name := range c.Enabled {
		if !harvest.SourceType(name).Valid() {
			return fmt.Errorf("enabled: unknown source type %q", name)
		}
	}
	return c.validateSources()
}

func (c Config) validateSources() error {
	var errs []error
	for i, s := range c.Sources {
		if !s.Type.Valid() {
			errs = append(errs, fmt.Errorf("sources[%d]: unknown source type %q", i, s.Type))
			continue
		}
		if strings.TrimSpace(s.Identifier) == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: identifier is required", i))
		}
		if s.MaxItems < 0 {
			errs = append(errs, fmt.Errorf("sources[%d]: max_items must be >= 0", i))
		}
	}
	return errors.Join(errs...)
}

// TypeEnabled reports whether sources of type t should run.
func (c Config) TypeEnabled(t harvest.SourceType) bool {
	on, ok := c.Enabled[string(t)]
	return !ok || on
}

// EnabledSources returns the configured sources whose type is enabled, in
// configuration order.
func (c Config) EnabledSources() []harvest.SourceConfig {
	out := make([]harvest.SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if c.TypeEnabled(s.Type) {
			out = append(out, s)
		}
	}
	return out
}

// Restrict narrows the enabled types. A non-empty only list disables every
// type not named in it; skip disables the named types. The receiver's map is
// replaced, never mutated in place.
func (c *Config) Restrict(only, skip []harvest.SourceType) {
	if len(only) == 0 && len(skip) == 0 {
		return
	}
	enabled := make(map[string]bool, len(harvest.AllSourceTypes()))
	for _, t := range harvest.AllSourceTypes() {
		enabled[string(t)] = c.TypeEnabled(t)
	}
	if len(only) > 0 {
		keep := make(map[harvest.SourceType]bool, len(only))
		for _, t := range only {
			keep[t] = true
		}
		for _, t := range harvest.AllSourceTypes() {
			if !keep[t] {
				enabled[string(t)] = false
			}
		}
	}
	for _, t := range skip {
		enabled[string(t)] = false
	}
	c.Enabled = enabled
}
