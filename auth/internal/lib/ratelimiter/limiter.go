package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsPrefix = "auth_attempts:"
	blockedPrefix  = "blocked_ip:"
)

// RateLimiter counts failed logins per client IP in Redis and locks the IP out
// once MaxAttempts failures happen within Window.
type RateLimiter struct {
	RedisClient *redis.Client
	MaxAttempts int
	Window      time.Duration
	BlockTime   time.Duration
}

func NewRateLimiter(client *redis.Client, maxAttempts int, window, blockTime time.Duration) *RateLimiter {
	return &RateLimiter{
		RedisClient: client,
		MaxAttempts: maxAttempts,
		Window:      window,
		BlockTime:   blockTime,
	}
}

// RegisterFailure records a failed attempt and reports whether the IP is now locked out.
func (r *RateLimiter) RegisterFailure(ctx context.Context, clientIP string) (bool, error) {
	const op = "ratelimiter.RegisterFailure"

	key := attemptsPrefix + clientIP

	attempts, err := r.RedisClient.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// the window starts with the first failure
	if attempts == 1 {
		if err := r.RedisClient.Expire(ctx, key, r.Window).Err(); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if attempts < int64(r.MaxAttempts) {
		return false, nil
	}

	if err := r.block(ctx, clientIP); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (r *RateLimiter) block(ctx context.Context, clientIP string) error {
	_, err := r.RedisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, blockedPrefix+clientIP, "blocked", r.BlockTime)
		pipe.Del(ctx, attemptsPrefix+clientIP)
		return nil
	})
	return err
}

// IsBlocked reports whether the IP is locked out.
func (r *RateLimiter) IsBlocked(ctx context.Context, clientIP string) (bool, error) {
	const op = "ratelimiter.IsBlocked"

	err := r.RedisClient.Get(ctx, blockedPrefix+clientIP).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// ResetAttempts clears the failure counter after a successful login.
func (r *RateLimiter) ResetAttempts(ctx context.Context, clientIP string) error {
	const op = "ratelimiter.ResetAttempts"

	if err := r.RedisClient.Del(ctx, attemptsPrefix+clientIP).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
