package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter enforces a per-IP login attempt budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin checks whether ip is within the login attempt budget.
// Returns an error if rate-limited or if Redis cannot be reached.
func (l *Limiter) CheckLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	count, err := l.GetLoginAttempts(ctx, ip)
	if err != nil {
		return err
	}
	if count >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	return nil
}

// IncrementLogin records a failed login attempt from ip.
func (l *Limiter) IncrementLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the failed-login counter for ip.
// Called after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, loginIPKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetLoginAttempts returns the current attempt counter for ip.
func (l *Limiter) GetLoginAttempts(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, loginIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// FixedWindow increments key and reports ErrRateLimited once the count in
// the current window exceeds max.
func FixedWindow(ctx context.Context, client redis.UniversalClient, key string, max int, window time.Duration) error {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

func loginIPKey(ip string) string {
	return "mtl:ip:" + ip
}
