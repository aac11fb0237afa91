package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/promptlab/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyOrgSwitch = "orgs:switch:user:%s"
)

// SwitchLimiter throttles active-organization switches per user. A nil
// limiter allows everything.
type SwitchLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type SwitchLimiterParams struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

func NewSwitchLimiter(p SwitchLimiterParams) (*SwitchLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		p.Log.Info("org switch rate limit disabled")
		return nil, nil
	}

	client, err := newRedisClient(limitCfg)
	if err != nil {
		return nil, err
	}
	limiter, err := newSwitchLimiter(client, limitCfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				p.Log.Warn("rate limit redis unreachable", zap.String("addr", limitCfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return limiter, nil
}

func newRedisClient(cfg config.RateLimitConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	}), nil
}

func newSwitchLimiter(client *redis.Client, cfg config.RateLimitConfig) (*SwitchLimiter, error) {
	if cfg.OrgSwitchRate <= 0 || cfg.OrgSwitchBurst <= 0 {
		return nil, errors.New("org switch rate limit must be positive")
	}
	return &SwitchLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.OrgSwitchRate,
		burst:  cfg.OrgSwitchBurst,
	}, nil
}

func (l *SwitchLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *SwitchLimiter) Allow(ctx context.Context, userID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyOrgSwitch, userID.String()), l.rate, l.burst)
}
