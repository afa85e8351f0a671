package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/handlers/slogdiscard"
	"nodove/auth/internal/lib/password"
	"nodove/auth/internal/lib/ratelimiter"
	"nodove/auth/internal/lib/token"
	"nodove/auth/internal/repository"
	"nodove/auth/internal/repository/redis"
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryUsers struct {
	byID map[string]*models.User
}

func (m *memoryUsers) UserByID(_ context.Context, userID string) (*models.User, error) {
	if u, ok := m.byID[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUsers) UserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type recorder struct {
	mu     sync.Mutex
	events []models.LoginEvent
}

func (r *recorder) RecordLogin(_ context.Context, e models.LoginEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type failingBlocks struct {
	repository.BlockRepository
}

func (failingBlocks) GetBlock(context.Context, string) (*models.BlockRecord, error) {
	return nil, errors.New("connection refused")
}

type suite struct {
	auth    *Auth
	clock   *fakeClock
	codec   *token.Codec
	repo    *redis.Repository
	users   *memoryUsers
	history *recorder
	user    *models.User
	pass    string
}

func newSuite(t *testing.T) *suite {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	codec, err := token.New(token.Options{
		Format:        token.FormatJWT,
		AccessSecret:  "access-secret-" + gofakeit.LetterN(24),
		RefreshSecret: "refresh-secret-" + gofakeit.LetterN(24),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}, token.WithClock(clock.Now))
	require.NoError(t, err)

	pass := gofakeit.Password(true, true, true, false, false, 12)
	hash, err := password.Hash(pass)
	require.NoError(t, err)

	user := &models.User{
		ID:       1,
		UserID:   gofakeit.Numerify("17##########"),
		Email:    gofakeit.Email(),
		Nickname: gofakeit.Username(),
		PassHash: hash,
		Roles:    []models.Role{models.RoleUser},
		Active:   true,
	}
	users := &memoryUsers{byID: map[string]*models.User{user.UserID: user}}

	repo := redis.NewWithClient(client)
	history := &recorder{}
	limiter := ratelimiter.NewRateLimiter(client, 3, time.Minute, 10*time.Minute)

	a := New(slogdiscard.NewDiscardLogger(), codec, users, password.Verifier{}, repo, repo, history,
		WithClock(clock.Now), WithLimiter(limiter))

	return &suite{
		auth:    a,
		clock:   clock,
		codec:   codec,
		repo:    repo,
		users:   users,
		history: history,
		user:    user,
		pass:    pass,
	}
}

func (s *suite) login(t *testing.T, deviceID string) *models.TokenPair {
	t.Helper()

	pair, err := s.auth.Login(context.Background(),
		models.Credentials{Email: s.user.Email, Password: s.pass},
		models.ClientInfo{DeviceID: deviceID, IP: "10.0.0.1", UserAgent: "test-agent"},
	)
	require.NoError(t, err)

	return pair
}

func (s *suite) sessionKey(deviceID string) models.SessionKey {
	return models.SessionKey{Provider: models.ProviderLocal, UserID: s.user.UserID, DeviceID: deviceID}
}

func TestLogin_Success(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "d1", pair.DeviceID)

	claims, err := s.codec.Verify(pair.AccessToken, models.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.user.UserID, claims.Access.UserID)
	assert.Equal(t, s.user.Roles, claims.Access.Roles)

	session, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, session.RefreshToken)
	assert.Equal(t, pair.AccessToken, session.AccessToken)
	assert.Equal(t, "10.0.0.1", session.IP)

	require.Len(t, s.history.events, 1)
	assert.True(t, s.history.events[0].Success)
	assert.Equal(t, "d1", s.history.events[0].DeviceID)
}

func TestLogin_GeneratesDeviceID(t *testing.T) {
	s := newSuite(t)

	pair := s.login(t, "")
	require.NotEmpty(t, pair.DeviceID)

	_, err := s.repo.GetSession(context.Background(), s.sessionKey(pair.DeviceID))
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *suite) models.Credentials
		wantErr error
	}{
		{
			name: "wrong password",
			prepare: func(s *suite) models.Credentials {
				return models.Credentials{Email: s.user.Email, Password: s.pass + "x"}
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "unknown email",
			prepare: func(s *suite) models.Credentials {
				return models.Credentials{Email: "nobody@example.com", Password: s.pass}
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "inactive user",
			prepare: func(s *suite) models.Credentials {
				s.user.Active = false
				return models.Credentials{Email: s.user.Email, Password: s.pass}
			},
			wantErr: ErrUserInactive,
		},
		{
			name: "blocked user",
			prepare: func(s *suite) models.Credentials {
				rec := &models.BlockRecord{UnblockAt: s.clock.Now().Add(10 * time.Minute), DurationMinutes: 10}
				_ = s.repo.SetBlock(context.Background(), s.user.UserID, rec, rec.TTL())
				return models.Credentials{Email: s.user.Email, Password: s.pass}
			},
			wantErr: ErrUserBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t)
			ctx := context.Background()

			_, err := s.auth.Login(ctx, tt.prepare(s), models.ClientInfo{DeviceID: "d1", IP: "10.0.0.1"})
			assert.ErrorIs(t, err, tt.wantErr)

			// no session is opened on failure
			sessions, err := s.repo.SessionsByUser(ctx, models.ProviderLocal, s.user.UserID)
			require.NoError(t, err)
			assert.Empty(t, sessions)
		})
	}
}

func TestLogin_TooManyAttempts(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	client := models.ClientInfo{DeviceID: "d1", IP: "10.0.0.9"}
	bad := models.Credentials{Email: s.user.Email, Password: "wrong"}

	for i := 0; i < 2; i++ {
		_, err := s.auth.Login(ctx, bad, client)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := s.auth.Login(ctx, bad, client)
	require.ErrorIs(t, err, ErrTooManyAttempts)

	// the right password is refused while the IP is locked out
	_, err = s.auth.Login(ctx, models.Credentials{Email: s.user.Email, Password: s.pass}, client)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// another client is unaffected
	_, err = s.auth.Login(ctx, models.Credentials{Email: s.user.Email, Password: s.pass},
		models.ClientInfo{DeviceID: "d2", IP: "10.0.0.10"})
	assert.NoError(t, err)
}

func TestRefresh_ReissuesAccessOnly(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	first := s.login(t, "d1")
	s.clock.Advance(time.Minute)

	second, err := s.auth.Refresh(ctx, first.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "d1", second.DeviceID)

	session, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	require.NoError(t, err)
	assert.Equal(t, second.AccessToken, session.AccessToken)
	assert.Equal(t, first.RefreshToken, session.RefreshToken)
	assert.True(t, session.UpdatedAt.After(session.CreatedAt))
}

func TestRefresh_SessionOverwrite(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	s.clock.Advance(time.Minute)
	r1, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	require.NoError(t, err)

	s.clock.Advance(time.Minute)
	r2, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	require.NoError(t, err)
	require.NotEqual(t, r1.AccessToken, r2.AccessToken)

	session, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	require.NoError(t, err)
	assert.Equal(t, r2.AccessToken, session.AccessToken)
}

func TestRefresh_Failures(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	t.Run("missing cookie", func(t *testing.T) {
		_, err := s.auth.Refresh(ctx, "", models.ClientInfo{DeviceID: "d1"})
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("missing device", func(t *testing.T) {
		_, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{})
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		_, err := s.auth.Refresh(ctx, pair.AccessToken, models.ClientInfo{DeviceID: "d1"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.auth.Refresh(ctx, "not.a.token", models.ClientInfo{DeviceID: "d1"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other device", func(t *testing.T) {
		_, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d2"})
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("replaced by a newer login", func(t *testing.T) {
		s.clock.Advance(time.Second)
		newer := s.login(t, "d1")
		require.NotEqual(t, pair.RefreshToken, newer.RefreshToken)

		_, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})
}

func TestRefresh_Expired(t *testing.T) {
	s := newSuite(t)

	pair := s.login(t, "d1")
	s.clock.Advance(refreshTTL + 2*time.Minute)

	_, err := s.auth.Refresh(context.Background(), pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefresh_BlockedUser(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	rec := &models.BlockRecord{UnblockAt: s.clock.Now().Add(10 * time.Minute), DurationMinutes: 10}
	require.NoError(t, s.repo.SetBlock(ctx, s.user.UserID, rec, rec.TTL()))

	_, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	assert.ErrorIs(t, err, ErrUserBlocked)
}

func TestLogout_Idempotent(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	require.NoError(t, s.auth.Logout(ctx, pair.RefreshToken, "d1"))
	require.NoError(t, s.auth.Logout(ctx, pair.RefreshToken, "d1"))

	_, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestLogout_MissingCredential(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	assert.ErrorIs(t, s.auth.Logout(ctx, "", "d1"), ErrMissingCredential)
	assert.ErrorIs(t, s.auth.Logout(ctx, pair.RefreshToken, ""), ErrMissingCredential)
	assert.ErrorIs(t, s.auth.Logout(ctx, "garbage", "d1"), ErrInvalidToken)

	// nothing was removed
	_, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	assert.NoError(t, err)
}

func TestLogout_KeepsOtherDevices(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	d1 := s.login(t, "d1")
	s.login(t, "d2")

	require.NoError(t, s.auth.Logout(ctx, d1.RefreshToken, "d1"))

	devices, err := s.auth.Devices(ctx, s.user.UserID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "d2", devices[0].DeviceID)
}

func TestAuthorize(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	t.Run("no token", func(t *testing.T) {
		p, err := s.auth.Authorize(ctx, "")
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("invalid token", func(t *testing.T) {
		p, err := s.auth.Authorize(ctx, "garbage")
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		p, err := s.auth.Authorize(ctx, pair.RefreshToken)
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("valid", func(t *testing.T) {
		p, err := s.auth.Authorize(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, s.user.UserID, p.UserID)
		assert.Equal(t, s.user.Email, p.Email)
		assert.True(t, p.HasAnyRole(models.RoleUser))
	})
}

func TestAuthorize_BlockEnforcement(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	// the record outlives its unblock time in the cache
	rec := &models.BlockRecord{UnblockAt: s.clock.Now().Add(10 * time.Minute), DurationMinutes: 10}
	require.NoError(t, s.repo.SetBlock(ctx, s.user.UserID, rec, time.Hour))

	p, err := s.auth.Authorize(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUserBlocked)
	assert.Nil(t, p)

	s.clock.Advance(10*time.Minute + time.Second)

	exists, err := s.repo.BlockExists(ctx, s.user.UserID)
	require.NoError(t, err)
	require.True(t, exists)

	p, err = s.auth.Authorize(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, s.user.UserID, p.UserID)
}

func TestAuthorize_BlockCacheFailureDenies(t *testing.T) {
	s := newSuite(t)
	pair := s.login(t, "d1")

	s.auth.blocks = failingBlocks{}

	p, err := s.auth.Authorize(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserBlocked)
	assert.Nil(t, p)
}

func TestVerifyAccess_Expired(t *testing.T) {
	s := newSuite(t)
	pair := s.login(t, "d1")

	s.clock.Advance(accessTTL + 2*time.Minute)

	_, err := s.auth.VerifyAccess(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestEndToEnd_LoginRefreshLogout(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	pair := s.login(t, "d1")

	session, err := s.repo.GetSession(ctx, s.sessionKey("d1"))
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, session.RefreshToken)

	s.clock.Advance(time.Minute)
	reissued, err := s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, reissued.AccessToken)

	require.NoError(t, s.auth.Logout(ctx, pair.RefreshToken, "d1"))

	_, err = s.repo.GetSession(ctx, s.sessionKey("d1"))
	require.ErrorIs(t, err, repository.ErrSessionNotFound)

	// a logged out device can no longer reissue
	_, err = s.auth.Refresh(ctx, pair.RefreshToken, models.ClientInfo{DeviceID: "d1"})
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// the access token stays valid until it expires
	p, err := s.auth.Authorize(ctx, reissued.AccessToken)
	require.NoError(t, err)
	assert.NotNil(t, p)
}
