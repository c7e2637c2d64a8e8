package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/accounts/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limit is a token bucket refilled at Rate tokens per second up to Burst.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) valid() bool { return l.Rate > 0 && l.Burst > 0 }

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Unlimited allows every call.
type Unlimited struct{}

func (Unlimited) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	return &Result{Allowed: true, Limit: limit.Burst, Remaining: limit.Burst}, nil
}

// MemoryLimiter keeps one bucket per key in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*rate.Limiter)}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if !limit.valid() {
		return nil, ErrInvalidLimit
	}

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)
		m.buckets[key] = b
	} else {
		if b.Limit() != rate.Limit(limit.Rate) {
			b.SetLimit(rate.Limit(limit.Rate))
		}
		if b.Burst() != limit.Burst {
			b.SetBurst(limit.Burst)
		}
	}
	m.mu.Unlock()

	allowed := b.Allow()
	return newResult(allowed, limit, b.Tokens()), nil
}

type Params struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

// NewLimiter picks the backend from config: Redis when an address is set,
// process memory otherwise, and no limiting when disabled.
func NewLimiter(p Params) Limiter {
	log := p.Log.Named("ratelimit")
	cfg := p.Cfg.RateLimit
	if !cfg.Enabled {
		log.Info("rate limiting disabled")
		return Unlimited{}
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("rate limiting in memory")
		return NewMemoryLimiter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("rate limiting with redis", zap.String("addr", addr))
	return NewTokenBucket(client, "accounts:ratelimit:")
}
