package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

func TestSessions_PutGetDelete(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	key := models.SessionKey{Provider: models.ProviderLocal, UserID: "42", DeviceID: "d1"}
	now := time.Now().UTC()
	s := &models.Session{
		UserID:       "42",
		DeviceID:     "d1",
		RefreshToken: "r1",
		AccessToken:  "a1",
		IP:           "10.0.0.1",
		UserAgent:    "curl/8",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, repo.PutSession(ctx, key, s, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("LOCAL_REFRESH_42_d1"))

	got, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RefreshToken)
	assert.Equal(t, "a1", got.AccessToken)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.Equal(t, "curl/8", got.UserAgent)
	assert.True(t, now.Equal(got.CreatedAt))

	require.NoError(t, repo.DeleteSession(ctx, key))
	_, err = repo.GetSession(ctx, key)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	// idempotent
	require.NoError(t, repo.DeleteSession(ctx, key))
}

func TestSessions_OverwriteKeepsLatest(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	key := models.SessionKey{Provider: models.ProviderLocal, UserID: "42", DeviceID: "d1"}

	require.NoError(t, repo.PutSession(ctx, key, &models.Session{UserID: "42", DeviceID: "d1", RefreshToken: "r1", AccessToken: "a1", IP: "1.1.1.1"}, time.Hour))
	require.NoError(t, repo.PutSession(ctx, key, &models.Session{UserID: "42", DeviceID: "d1", RefreshToken: "r1", AccessToken: "a2"}, time.Hour))

	got, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	// fields of the previous write do not leak into the new one
	assert.Empty(t, got.IP)
}

func TestSessions_TTLExpiry(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	key := models.SessionKey{Provider: models.ProviderLocal, UserID: "42", DeviceID: "d1"}
	require.NoError(t, repo.PutSession(ctx, key, &models.Session{UserID: "42", RefreshToken: "r1"}, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := repo.GetSession(ctx, key)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessions_ByUser(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, device := range []string{"d1", "d2", "d3"} {
		key := models.SessionKey{Provider: models.ProviderLocal, UserID: "42", DeviceID: device}
		require.NoError(t, repo.PutSession(ctx, key, &models.Session{UserID: "42", DeviceID: device, RefreshToken: "r-" + device}, time.Hour))
	}
	other := models.SessionKey{Provider: models.ProviderLocal, UserID: "43", DeviceID: "d1"}
	require.NoError(t, repo.PutSession(ctx, other, &models.Session{UserID: "43", DeviceID: "d1"}, time.Hour))

	sessions, err := repo.SessionsByUser(ctx, models.ProviderLocal, "42")
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	devices := make([]string, 0, len(sessions))
	for _, s := range sessions {
		devices = append(devices, s.DeviceID)
	}
	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, devices)

	none, err := repo.SessionsByUser(ctx, models.ProviderLocal, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
