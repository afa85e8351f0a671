package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	changed, err := s.Migrate()
	require.NoError(t, err)
	require.True(t, changed)

	return s
}

func fakeUser() *models.User {
	return &models.User{
		UserID:   gofakeit.UUID(),
		Email:    gofakeit.Email(),
		Nickname: gofakeit.Username() + gofakeit.DigitN(6),
		PassHash: gofakeit.Password(true, true, true, false, false, 20),
		Roles:    []models.Role{models.RoleUser},
		Active:   true,
	}
}

func TestStorage_MigrateTwice(t *testing.T) {
	s := newTestStorage(t)

	changed, err := s.Migrate()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStorage_SaveAndLookup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u := fakeUser()
	u.Email = "Mixed@Example.com"
	u.Roles = []models.Role{models.RoleAdmin}

	id, err := s.SaveUser(ctx, u)
	require.NoError(t, err)
	assert.Positive(t, id)

	byID, err := s.UserByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, id, byID.ID)
	assert.Equal(t, "mixed@example.com", byID.Email)
	assert.Equal(t, []models.Role{models.RoleAdmin}, byID.Roles)
	assert.True(t, byID.Active)

	byEmail, err := s.UserByEmail(ctx, "MIXED@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, byEmail.UserID)

	byNick, err := s.UserByNickname(ctx, u.Nickname)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, byNick.UserID)

	ok, err := s.EmailExists(ctx, u.Email)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.NicknameExists(ctx, "nobody-"+gofakeit.DigitN(8))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = s.UserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestStorage_UniqueViolations(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u := fakeUser()
	_, err := s.SaveUser(ctx, u)
	require.NoError(t, err)

	dupEmail := fakeUser()
	dupEmail.Email = u.Email
	_, err = s.SaveUser(ctx, dupEmail)
	assert.ErrorIs(t, err, repository.ErrEmailUnique)

	dupNick := fakeUser()
	dupNick.Nickname = u.Nickname
	_, err = s.SaveUser(ctx, dupNick)
	assert.ErrorIs(t, err, repository.ErrUsernameUnique)

	dupID := fakeUser()
	dupID.UserID = u.UserID
	_, err = s.SaveUser(ctx, dupID)
	assert.ErrorIs(t, err, repository.ErrUserExists)
}

func TestStorage_SetActive(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u := fakeUser()
	_, err := s.SaveUser(ctx, u)
	require.NoError(t, err)

	require.NoError(t, s.SetActive(ctx, u.UserID, false))

	got, err := s.UserByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, s.SetActive(ctx, "missing", true), repository.ErrUserNotFound)
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []models.Role{models.RoleUser}, splitRoles(""))
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleUser}, splitRoles("ADMIN, USER"))
	assert.Equal(t, "ADMIN,USER", joinRoles([]models.Role{models.RoleAdmin, models.RoleUser}))
}
