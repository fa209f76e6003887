package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/mtAuth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	Window              time.Duration
	MaxRequests         int
}

// PasswordResetLimiter throttles reset requests per email and per client IP.
type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforce(ctx, requestEmailKey(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, requestIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforce(ctx context.Context, key string) error {
	return mapWindowError(
		rate.FixedWindow(ctx, l.redis, key, l.config.MaxRequests, l.config.Window),
		ErrResetRateLimited, ErrResetRedisUnavailable,
	)
}

func requestEmailKey(email string) string {
	return "mtpr:e:" + email
}

func requestIPKey(ip string) string {
	return "mtpr:ip:" + ip
}
