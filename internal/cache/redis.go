package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RedisProvider implements Provider on a redis server.
type RedisProvider struct {
	rdb    *redis.Client
	prefix string
}

// RedisConfig holds connection parameters for the shared cache.
type RedisConfig struct {
	URL         string
	Prefix      string
	DialTimeout time.Duration
}

// NewRedisProvider connects to cfg.URL and pings it to fail fast when the server is
// unreachable or the credentials are wrong.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisProvider{rdb: rdb, prefix: strings.Trim(cfg.Prefix, ":")}, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return raw, err
}

// Set stores bytes with the provided TTL.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, p.key(key), value, ttl).Err()
}

// SetNX stores the value only if the key does not exist.
func (p *RedisProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.rdb.SetNX(ctx, p.key(key), value, ttl).Result()
}

// Del removes a key from the cache.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.key(key)).Err()
}

// Close closes the connection pool.
func (p *RedisProvider) Close() error {
	return p.rdb.Close()
}

func (p *RedisProvider) key(k string) string {
	return p.prefix + ":" + k
}

// New builds the configured provider. An unreachable redis falls back to the in-process
// cache with a warning; backend "none" disables caching.
func New(ctx context.Context, backend string, cfg RedisConfig, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendNone:
		return NoopProvider{}
	case BackendRedis:
		provider, err := NewRedisProvider(ctx, cfg)
		if err == nil {
			logger.Info("using redis cache")
			return provider
		}
		logger.Warn("redis cache unavailable; using in-memory cache", slog.Any("error", err))
	}
	return NewMemoryProvider()
}
