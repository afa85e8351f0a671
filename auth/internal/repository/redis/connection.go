package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodove/auth/internal/config"
	"nodove/auth/internal/repository"
)

// Repository is the Redis backed block cache and session store.
type Repository struct {
	Client *redis.Client
}

var _ repository.RedisRepository = (*Repository)(nil)

// New connects to Redis and pings it.
func New(ctx context.Context, cfg config.RedisConfig) (*Repository, error) {
	const op = "repository.redis.New"

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Repository{Client: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Repository {
	return &Repository{Client: client}
}

// Close closes the connection to Redis
func (r *Repository) Close() error {
	return r.Client.Close()
}
