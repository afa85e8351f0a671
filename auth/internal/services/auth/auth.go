package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/lib/password"
	"nodove/auth/internal/lib/token"
	"nodove/auth/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserInactive       = errors.New("user is inactive")
	ErrMissingCredential  = errors.New("credential is missing")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
)

type UserProvider interface {
	UserByID(ctx context.Context, userID string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

type PasswordVerifier interface {
	Verify(hash, password string) error
}

type TokenCodec interface {
	IssueAccess(roles []models.Role, userID, email, nickname string) (string, error)
	IssueRefresh(userID string) (string, error)
	Verify(tok string, kind models.TokenKind) (*models.Claims, error)
	IsExpired(tok string, kind models.TokenKind) (bool, error)
	RefreshTTL() time.Duration
}

// LoginRecorder is the write-only login history sink.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, event models.LoginEvent)
}

// AttemptLimiter locks client IPs out after repeated failed logins.
type AttemptLimiter interface {
	IsBlocked(ctx context.Context, clientIP string) (bool, error)
	RegisterFailure(ctx context.Context, clientIP string) (bool, error)
	ResetAttempts(ctx context.Context, clientIP string) error
}

type Auth struct {
	log      *slog.Logger
	codec    TokenCodec
	users    UserProvider
	verifier PasswordVerifier
	sessions repository.SessionRepository
	blocks   repository.BlockRepository
	history  LoginRecorder
	limiter  AttemptLimiter
	now      func() time.Time
}

type Option func(*Auth)

func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

// WithLimiter enables the failed-login limiter.
func WithLimiter(l AttemptLimiter) Option {
	return func(a *Auth) {
		a.limiter = l
	}
}

func New(
	log *slog.Logger,
	codec TokenCodec,
	users UserProvider,
	verifier PasswordVerifier,
	sessions repository.SessionRepository,
	blocks repository.BlockRepository,
	history LoginRecorder,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:      log,
		codec:    codec,
		users:    users,
		verifier: verifier,
		sessions: sessions,
		blocks:   blocks,
		history:  history,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Login checks credentials and opens a session for the client's device. A new
// device id is generated when the client did not send one.
func (a *Auth) Login(ctx context.Context, creds models.Credentials, client models.ClientInfo) (*models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("ip", client.IP),
	)

	if a.limiter != nil {
		locked, err := a.limiter.IsBlocked(ctx, client.IP)
		if err != nil {
			log.Error("failed to check attempt limiter", sl.Err(err))
		} else if locked {
			log.Warn("login refused, too many failed attempts")
			return nil, ErrTooManyAttempts
		}
	}

	user, err := a.users.UserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Warn("user not found")
			return nil, a.loginFailed(ctx, log, client)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("userId", user.UserID))

	if err := a.verifier.Verify(user.PassHash, creds.Password); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Error("failed to verify password", sl.Err(err))
		} else {
			log.Warn("invalid password")
		}
		a.record(ctx, user.UserID, client, false)
		return nil, a.loginFailed(ctx, log, client)
	}

	if !user.Active {
		log.Warn("login refused, user is inactive")
		return nil, ErrUserInactive
	}

	blocked, err := a.isBlocked(ctx, user.UserID)
	if err != nil {
		log.Error("failed to read block cache", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		log.Warn("login refused, user is blocked")
		return nil, ErrUserBlocked
	}

	deviceID := client.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	accessToken, err := a.codec.IssueAccess(user.Roles, user.UserID, user.Email, user.Nickname)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := a.codec.IssueRefresh(user.UserID)
	if err != nil {
		log.Error("failed to issue refresh token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := a.now()
	key := models.SessionKey{Provider: models.ProviderLocal, UserID: user.UserID, DeviceID: deviceID}
	session := &models.Session{
		UserID:       user.UserID,
		DeviceID:     deviceID,
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
		IP:           client.IP,
		UserAgent:    client.UserAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.sessions.PutSession(ctx, key, session, a.codec.RefreshTTL()); err != nil {
		log.Error("failed to save session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.limiter != nil {
		if err := a.limiter.ResetAttempts(ctx, client.IP); err != nil {
			log.Error("failed to reset attempts", sl.Err(err))
		}
	}
	a.record(ctx, user.UserID, models.ClientInfo{DeviceID: deviceID, IP: client.IP, UserAgent: client.UserAgent}, true)

	log.Info("user logged in", slog.String("deviceId", deviceID))

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		DeviceID:     deviceID,
	}, nil
}

func (a *Auth) loginFailed(ctx context.Context, log *slog.Logger, client models.ClientInfo) error {
	if a.limiter == nil {
		return ErrInvalidCredentials
	}

	locked, err := a.limiter.RegisterFailure(ctx, client.IP)
	if err != nil {
		log.Error("failed to register failed attempt", sl.Err(err))
		return ErrInvalidCredentials
	}
	if locked {
		return ErrTooManyAttempts
	}

	return ErrInvalidCredentials
}

func (a *Auth) record(ctx context.Context, userID string, client models.ClientInfo, success bool) {
	a.history.RecordLogin(ctx, models.LoginEvent{
		UserID:    userID,
		DeviceID:  client.DeviceID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Success:   success,
		At:        a.now().Unix(),
	})
}

// Refresh mints a new access token for the device holding refreshToken. The
// refresh token itself is reused and must match the one stored for the device.
func (a *Auth) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(
		slog.String("op", op),
		slog.String("deviceId", client.DeviceID),
	)

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}
	if client.DeviceID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCredential)
	}

	expired, err := a.codec.IsExpired(refreshToken, models.RefreshToken)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if expired {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	claims, err := a.codec.Verify(refreshToken, models.RefreshToken)
	if err != nil {
		// expired between the two checks
		if token.KindOf(err) == token.KindExpired {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		log.Warn("refresh token rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	userID := claims.UserID()
	log = log.With(slog.String("userId", userID))

	key := models.SessionKey{Provider: models.ProviderLocal, UserID: userID, DeviceID: client.DeviceID}
	session, err := a.sessions.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			log.Warn("no session for device")
			return nil, fmt.Errorf("%s: %w", op, ErrSessionRevoked)
		}
		log.Error("failed to load session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if subtle.ConstantTimeCompare([]byte(session.RefreshToken), []byte(refreshToken)) != 1 {
		log.Warn("refresh token does not match the device session")
		return nil, fmt.Errorf("%s: %w", op, ErrSessionRevoked)
	}

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Warn("user not found")
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !user.Active {
		return nil, fmt.Errorf("%s: %w", op, ErrUserInactive)
	}

	blocked, err := a.isBlocked(ctx, userID)
	if err != nil {
		log.Error("failed to read block cache", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		return nil, fmt.Errorf("%s: %w", op, ErrUserBlocked)
	}

	accessToken, err := a.codec.IssueAccess(user.Roles, user.UserID, user.Email, user.Nickname)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// the entry lives as long as the refresh token it holds
	now := a.now()
	ttl := claims.Refresh.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}

	session.AccessToken = accessToken
	session.UpdatedAt = now
	if client.IP != "" {
		session.IP = client.IP
	}
	if client.UserAgent != "" {
		session.UserAgent = client.UserAgent
	}

	if err := a.sessions.PutSession(ctx, key, session, ttl); err != nil {
		log.Error("failed to save session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token reissued")

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		DeviceID:     client.DeviceID,
	}, nil
}

// Logout removes the device session. Access tokens already issued stay valid
// until they expire.
func (a *Auth) Logout(ctx context.Context, refreshToken, deviceID string) error {
	const op = "auth.Logout"

	log := a.log.With(
		slog.String("op", op),
		slog.String("deviceId", deviceID),
	)

	if refreshToken == "" || deviceID == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingCredential)
	}

	claims, err := a.codec.Verify(refreshToken, models.RefreshToken)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	key := models.SessionKey{Provider: models.ProviderLocal, UserID: claims.UserID(), DeviceID: deviceID}
	if err := a.sessions.DeleteSession(ctx, key); err != nil {
		log.Error("failed to delete session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out", slog.String("userId", claims.UserID()))

	return nil
}

// VerifyAccess resolves an access token to a Principal. Token failures are reported
// as ErrMissingCredential, ErrTokenExpired or ErrInvalidToken.
func (a *Auth) VerifyAccess(ctx context.Context, accessToken string) (*models.Principal, error) {
	const op = "auth.VerifyAccess"

	if accessToken == "" {
		return nil, ErrMissingCredential
	}

	claims, err := a.codec.Verify(accessToken, models.AccessToken)
	if err != nil {
		if token.KindOf(err) == token.KindExpired {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	blocked, err := a.isBlocked(ctx, claims.Access.UserID)
	if err != nil {
		a.log.Error("failed to read block cache, denying",
			slog.String("op", op),
			slog.String("userId", claims.Access.UserID),
			sl.Err(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		return nil, ErrUserBlocked
	}

	return models.NewPrincipal(claims.Access), nil
}

// Authorize is the per-request gate. A missing or invalid token leaves the request
// unauthenticated (nil Principal, nil error). A blocked user yields ErrUserBlocked and
// a block cache failure yields a non-nil error; both must deny the request.
func (a *Auth) Authorize(ctx context.Context, accessToken string) (*models.Principal, error) {
	p, err := a.VerifyAccess(ctx, accessToken)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrInvalidToken):
		return nil, nil
	default:
		return nil, err
	}
}

// Devices lists the open device sessions of a user.
func (a *Auth) Devices(ctx context.Context, userID string) ([]*models.Session, error) {
	const op = "auth.Devices"

	sessions, err := a.sessions.SessionsByUser(ctx, models.ProviderLocal, userID)
	if err != nil {
		a.log.Error("failed to list sessions", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

func (a *Auth) isBlocked(ctx context.Context, userID string) (bool, error) {
	record, err := a.blocks.GetBlock(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return false, nil
		}
		return false, err
	}

	return record.IsBlocked(a.now()), nil
}
