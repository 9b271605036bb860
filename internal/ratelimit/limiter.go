// Package ratelimit implements sliding-window request admission with an in-process
// or a redis-backed store, plus the net/http middleware that applies it.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrRateLimited is returned to callers that were denied admission.
var ErrRateLimited = errors.New("rate limited")

// Limiter admits or denies requests per identifier.
type Limiter interface {
	// Check records an attempt for id and reports whether it is admitted.
	Check(ctx context.Context, id string) (bool, error)
	// Reset clears local state. Shared stores ignore it.
	Reset()
}

// Config describes the sliding window and backend selection.
type Config struct {
	Requests     int
	Window       time.Duration
	Backend      string
	RedisURL     string
	KeyPrefix    string
	ProbeTimeout time.Duration
}

func (c *Config) normalise() {
	if c.Requests < 1 {
		c.Requests = 1
	}
	if c.Window < time.Second {
		c.Window = time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "rate"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
}

// New builds the configured limiter once at startup. A redis backend is probed with a
// ping; when the store is unreachable or unconfigured the in-process limiter is returned
// and a warning is logged.
func New(ctx context.Context, cfg Config, logger *slog.Logger) Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.normalise()

	if cfg.Backend != BackendRedis {
		logger.Info("using in-memory rate limiter",
			slog.Int("requests", cfg.Requests),
			slog.Duration("window", cfg.Window),
		)
		return NewMemoryLimiter(cfg.Requests, cfg.Window)
	}
	if cfg.RedisURL == "" {
		logger.Warn("RATE_LIMIT_BACKEND=redis but REDIS_URL missing; using memory")
		return NewMemoryLimiter(cfg.Requests, cfg.Window)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL; using in-memory rate limiter", slog.Any("error", err))
		return NewMemoryLimiter(cfg.Requests, cfg.Window)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		logger.Warn("redis unreachable; using in-memory rate limiter",
			slog.String("addr", opts.Addr),
			slog.Any("error", err),
		)
		return NewMemoryLimiter(cfg.Requests, cfg.Window)
	}

	logger.Info("using redis rate limiter",
		slog.String("addr", opts.Addr),
		slog.Int("requests", cfg.Requests),
		slog.Duration("window", cfg.Window),
	)
	return NewRedisLimiter(rdb, cfg.Requests, cfg.Window, cfg.KeyPrefix)
}

// BackendName reports which backend l uses, for logs and metrics.
func BackendName(l Limiter) string {
	switch l.(type) {
	case *RedisLimiter:
		return BackendRedis
	case *MemoryLimiter:
		return BackendMemory
	default:
		return "custom"
	}
}
