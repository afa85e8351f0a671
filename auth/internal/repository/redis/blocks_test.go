package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

func newTestRepository(t *testing.T) (*Repository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client), mr
}

func TestBlocks_SetGetDelete(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	record := &models.BlockRecord{
		UnblockAt:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}

	require.NoError(t, repo.SetBlock(ctx, "42", record, record.TTL()))
	assert.Equal(t, 30*time.Minute, mr.TTL(BlockKeyPrefix+"42"))

	got, err := repo.GetBlock(ctx, "42")
	require.NoError(t, err)
	assert.True(t, record.UnblockAt.Equal(got.UnblockAt))
	assert.Equal(t, 30, got.DurationMinutes)

	exists, err := repo.BlockExists(ctx, "42")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.DeleteBlock(ctx, "42"))

	_, err = repo.GetBlock(ctx, "42")
	assert.ErrorIs(t, err, repository.ErrBlockNotFound)

	exists, err = repo.BlockExists(ctx, "42")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlocks_ExpireWithTTL(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	record := &models.BlockRecord{UnblockAt: time.Now().Add(time.Minute), DurationMinutes: 1}
	require.NoError(t, repo.SetBlock(ctx, "7", record, record.TTL()))

	mr.FastForward(61 * time.Second)

	_, err := repo.GetBlock(ctx, "7")
	assert.ErrorIs(t, err, repository.ErrBlockNotFound)
}

func TestBlocks_CorruptValue(t *testing.T) {
	repo, mr := newTestRepository(t)

	require.NoError(t, mr.Set(BlockKeyPrefix+"9", "{not json"))

	_, err := repo.GetBlock(context.Background(), "9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrBlockNotFound)
}

func TestBlocks_Scan(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, repo.SetBlock(ctx, id, &models.BlockRecord{UnblockAt: time.Now(), DurationMinutes: 5}, 5*time.Minute))
	}
	require.NoError(t, mr.Set("unrelated", "x"))

	var seen []string
	err := repo.ScanBlocks(ctx, 2, func(ids []string) error {
		assert.LessOrEqual(t, len(ids), 2)
		seen = append(seen, ids...)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5"}, seen)
}

func TestBlocks_DeleteStale(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	stale := &models.BlockRecord{UnblockAt: now.Add(-time.Minute), DurationMinutes: 10}
	active := &models.BlockRecord{UnblockAt: now.Add(time.Minute), DurationMinutes: 10}
	require.NoError(t, repo.SetBlock(ctx, "stale", stale, time.Hour))
	require.NoError(t, repo.SetBlock(ctx, "active", active, time.Hour))
	require.NoError(t, mr.Set(BlockKeyPrefix+"corrupt", "{"))

	deleted, err := repo.DeleteStaleBlock(ctx, "stale", now)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteStaleBlock(ctx, "active", now)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteStaleBlock(ctx, "corrupt", now)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteStaleBlock(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.False(t, mr.Exists(BlockKeyPrefix+"stale"))
	assert.True(t, mr.Exists(BlockKeyPrefix+"active"))
}
