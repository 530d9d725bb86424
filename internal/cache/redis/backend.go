// Package redis provides the primary cache backend over the Redis protocol.
// Any RESP-compatible store exposing SET/GET/DEL/PING is substitutable.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/content-harvester/internal/cache"
)

// Config captures connection settings for the backend.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// Backend implements cache.Backend with a pooled go-redis client. The client
// is safe for concurrent use by all extraction tasks.
type Backend struct {
	client *goredis.Client
}

var _ cache.Backend = (*Backend)(nil)

// New creates a Backend. It does not dial; the cache manager performs the
// liveness check.
func New(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	opts := &goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  orDefault(cfg.DialTimeout, 2*time.Second),
		ReadTimeout:  orDefault(cfg.ReadTimeout, time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, time.Second),
		PoolSize:     cfg.PoolSize,
		// The manager owns retry semantics; a failed call must surface quickly.
		MaxRetries: -1,
	}
	return NewFromClient(goredis.NewClient(opts)), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client) *Backend {
	return &Backend{client: client}
}

// Get returns the raw value stored under key or cache.ErrNotFound.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with the given expiry.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Del removes key. Deleting a missing key is not an error.
func (b *Backend) Del(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks liveness.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
