package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

// BlockKeyPrefix prefixes block records, one key per user.
const BlockKeyPrefix = "USER_BLOCKED_"

func blockKey(userID string) string {
	return BlockKeyPrefix + userID
}

// SetBlock stores the record as JSON with the given TTL.
func (r *Repository) SetBlock(ctx context.Context, userID string, record *models.BlockRecord, ttl time.Duration) error {
	const op = "repository.redis.SetBlock"

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.Client.Set(ctx, blockKey(userID), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetBlock loads the record for userID.
func (r *Repository) GetBlock(ctx context.Context, userID string) (*models.BlockRecord, error) {
	const op = "repository.redis.GetBlock"

	value, err := r.Client.Get(ctx, blockKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrBlockNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var record models.BlockRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("%s: decode record for user %s: %w", op, userID, err)
	}

	return &record, nil
}

// DeleteBlock removes the record for userID.
func (r *Repository) DeleteBlock(ctx context.Context, userID string) error {
	const op = "repository.redis.DeleteBlock"

	if err := r.Client.Del(ctx, blockKey(userID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// BlockExists reports whether a record is stored for userID. A present record may
// already be past its UnblockAt.
func (r *Repository) BlockExists(ctx context.Context, userID string) (bool, error) {
	const op = "repository.redis.BlockExists"

	n, err := r.Client.Exists(ctx, blockKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// ScanBlocks walks block records in batches of count keys and calls fn with the
// user ids of each batch.
func (r *Repository) ScanBlocks(ctx context.Context, count int64, fn func(userIDs []string) error) error {
	const op = "repository.redis.ScanBlocks"

	iter := r.Client.Scan(ctx, 0, BlockKeyPrefix+"*", count).Iterator()

	batch := make([]string, 0, count)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val()[len(BlockKeyPrefix):])
		if int64(len(batch)) >= count {
			if err := fn(batch); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// DeleteStaleBlock removes the record for userID if it no longer blocks at now.
// The key is watched so a block written concurrently is left in place.
func (r *Repository) DeleteStaleBlock(ctx context.Context, userID string, now time.Time) (bool, error) {
	const op = "repository.redis.DeleteStaleBlock"

	key := blockKey(userID)
	deleted := false

	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		value, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var record models.BlockRecord
		if err := json.Unmarshal(value, &record); err == nil && record.IsBlocked(now) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		deleted = true

		return nil
	}, key)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return deleted, nil
}
