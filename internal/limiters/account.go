package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/mtAuth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRegisterRateLimited      = errors.New("register rate limited")
	ErrRegisterRedisUnavailable = errors.New("register redis unavailable")
)

type RegisterConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Cooldown            time.Duration
}

// RegisterLimiter throttles sign-ups per email and per client IP.
type RegisterLimiter struct {
	redis  redis.UniversalClient
	config RegisterConfig
}

func NewRegisterLimiter(redisClient redis.UniversalClient, cfg RegisterConfig) *RegisterLimiter {
	return &RegisterLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *RegisterLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforceKey(ctx, registerEmailKey(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, registerIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *RegisterLimiter) enforceKey(ctx context.Context, key string) error {
	return mapWindowError(
		rate.FixedWindow(ctx, l.redis, key, l.config.MaxAttempts, l.config.Cooldown),
		ErrRegisterRateLimited, ErrRegisterRedisUnavailable,
	)
}

// mapWindowError translates rate primitives into the limiter's own errors.
func mapWindowError(err, limited, unavailable error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	default:
		return fmt.Errorf("%w: %v", unavailable, err)
	}
}

func registerEmailKey(email string) string {
	return "mtrg:e:" + email
}

func registerIPKey(ip string) string {
	return "mtrg:ip:" + ip
}
