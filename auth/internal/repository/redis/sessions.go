package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

// PutSession replaces the hash stored under key and sets its TTL in one transaction.
func (r *Repository) PutSession(ctx context.Context, key models.SessionKey, s *models.Session, ttl time.Duration) error {
	const op = "repository.redis.PutSession"

	k := key.String()
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, map[string]interface{}{
			"refreshToken": s.RefreshToken,
			"accessToken":  s.AccessToken,
			"userId":       s.UserID,
			"deviceId":     s.DeviceID,
			"ip":           s.IP,
			"ua":           s.UserAgent,
			"createdAt":    s.CreatedAt.UTC().Format(time.RFC3339Nano),
			"updatedAt":    s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetSession loads the session stored under key.
func (r *Repository) GetSession(ctx context.Context, key models.SessionKey) (*models.Session, error) {
	const op = "repository.redis.GetSession"

	s, err := r.getSessionFromKey(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// DeleteSession removes the session stored under key. Missing keys are ignored.
func (r *Repository) DeleteSession(ctx context.Context, key models.SessionKey) error {
	const op = "repository.redis.DeleteSession"

	if err := r.Client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionsByUser returns all device sessions of a user.
func (r *Repository) SessionsByUser(ctx context.Context, provider, userID string) ([]*models.Session, error) {
	const op = "repository.redis.SessionsByUser"

	pattern := models.SessionKey{Provider: provider, UserID: userID, DeviceID: "*"}.String()

	sessions := make([]*models.Session, 0)
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s, err := r.getSessionFromKey(ctx, iter.Val())
		if err != nil {
			// expired between SCAN and HGETALL
			if err == repository.ErrSessionNotFound {
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if s.UserID != userID {
			continue
		}
		sessions = append(sessions, s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

func (r *Repository) getSessionFromKey(ctx context.Context, key string) (*models.Session, error) {
	result, err := r.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get hash data for key %s: %w", key, err)
	}

	if len(result) == 0 {
		return nil, repository.ErrSessionNotFound
	}

	s := &models.Session{
		UserID:       result["userId"],
		DeviceID:     result["deviceId"],
		RefreshToken: result["refreshToken"],
		AccessToken:  result["accessToken"],
		IP:           result["ip"],
		UserAgent:    result["ua"],
	}

	if s.CreatedAt, err = parseTime(result["createdAt"]); err != nil {
		return nil, fmt.Errorf("invalid createdAt format for key %s: %w", key, err)
	}
	if s.UpdatedAt, err = parseTime(result["updatedAt"]); err != nil {
		return nil, fmt.Errorf("invalid updatedAt format for key %s: %w", key, err)
	}

	return s, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
