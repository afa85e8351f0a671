package http_auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/lib/metrics"
	"nodove/auth/internal/repository"
	"nodove/auth/internal/services/auth"
	"nodove/auth/internal/services/moderation"
)

const maxBodyBytes = 1 << 20

type Auth interface {
	Login(ctx context.Context, creds models.Credentials, client models.ClientInfo) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken, deviceID string) error
	VerifyAccess(ctx context.Context, accessToken string) (*models.Principal, error)
	Authorize(ctx context.Context, accessToken string) (*models.Principal, error)
	Devices(ctx context.Context, userID string) ([]*models.Session, error)
}

type Moderation interface {
	Block(ctx context.Context, userID string, duration time.Duration) (*models.BlockRecord, error)
	Unblock(ctx context.Context, userID string) error
	SetActive(ctx context.Context, userID string, active bool) error
	Status(ctx context.Context, userID string) (*models.BlockRecord, error)
}

type UserProvider interface {
	UserByID(ctx context.Context, userID string) (*models.User, error)
}

type Handler struct {
	log        *slog.Logger
	auth       Auth
	moderation Moderation
	users      UserProvider
	metrics    *metrics.Metrics
	cookie     CookieConfig
	proxies    []*net.IPNet
}

type Option func(*Handler)

// WithTrustedProxies lets peers inside nets set the client address through
// True-Client-IP, X-Real-IP or X-Forwarded-For. Without it the TCP peer is the client.
func WithTrustedProxies(nets []*net.IPNet) Option {
	return func(h *Handler) {
		h.proxies = nets
	}
}

func New(
	log *slog.Logger,
	authService Auth,
	moderationService Moderation,
	users UserProvider,
	m *metrics.Metrics,
	cookie CookieConfig,
	opts ...Option,
) *Handler {
	h := &Handler{
		log:        log,
		auth:       authService,
		moderation: moderationService,
		users:      users,
		metrics:    m,
		cookie:     cookie,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type blockRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

type deviceResponse struct {
	DeviceID  string    `json:"deviceId"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Current   bool      `json:"current"`
}

type profileResponse struct {
	UserID   string        `json:"userId"`
	Email    string        `json:"email"`
	Nickname string        `json:"nickname"`
	Role     models.Role   `json:"role"`
	Roles    []models.Role `json:"roles"`
}

type blockStatusResponse struct {
	Blocked         bool       `json:"blocked"`
	UnblockAt       *time.Time `json:"unblockedAt,omitempty"`
	DurationMinutes int        `json:"duration,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "http.Login"

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return
	}

	if err := validation.Validate(req.Email, validation.Required, validation.Length(3, 254), is.Email); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "email: "+err.Error())
		return
	}
	if err := validation.Validate(req.Password, validation.Required, validation.Length(1, 72)); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "password: "+err.Error())
		return
	}

	client := clientInfo(r)
	if err := validateDeviceID(client.DeviceID); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "device id: "+err.Error())
		return
	}

	pair, err := h.auth.Login(r.Context(), models.Credentials{Email: req.Email, Password: req.Password}, client)
	if err != nil {
		h.metrics.Event("login", "failed")
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			Error(w, http.StatusUnauthorized, CodeLoginFailed, "invalid email or password")
		case errors.Is(err, auth.ErrTooManyAttempts):
			Error(w, http.StatusTooManyRequests, CodeTooManyAttempts, "too many failed attempts, try again later")
		case errors.Is(err, auth.ErrUserInactive):
			Error(w, http.StatusForbidden, CodeUserInactive, "user is inactive")
		case errors.Is(err, auth.ErrUserBlocked):
			Error(w, http.StatusForbidden, CodeUserBlocked, "user is blocked")
		default:
			h.log.Error("login failed", slog.String("op", op), sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		}
		return
	}

	h.metrics.Event("login", "ok")
	h.writeTokens(w, pair)
	OK(w, CodeLoginSuccess, "login succeeded", map[string]string{"deviceId": pair.DeviceID})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	const op = "http.Refresh"

	client := clientInfo(r)
	if err := validateDeviceID(client.DeviceID); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "device id: "+err.Error())
		return
	}

	pair, err := h.auth.Refresh(r.Context(), refreshTokenFrom(r), client)
	if err != nil {
		h.metrics.Event("refresh", "failed")
		switch {
		case errors.Is(err, auth.ErrUserBlocked):
			Error(w, http.StatusForbidden, CodeUserBlocked, "user is blocked")
		case errors.Is(err, auth.ErrUserInactive):
			Error(w, http.StatusForbidden, CodeUserInactive, "user is inactive")
		case errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrMissingCredential),
			errors.Is(err, auth.ErrSessionRevoked),
			errors.Is(err, auth.ErrUserNotFound):
			Error(w, http.StatusUnauthorized, CodeTokenExpired, "refresh token expired, log in again")
		default:
			h.log.Error("refresh failed", slog.String("op", op), sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		}
		return
	}

	h.metrics.Event("refresh", "ok")
	h.writeTokens(w, pair)
	OK(w, CodeRefreshSuccess, "access token reissued", map[string]string{"deviceId": pair.DeviceID})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "http.Logout"

	err := h.auth.Logout(r.Context(), refreshTokenFrom(r), r.Header.Get(HeaderDeviceID))
	if err != nil {
		h.metrics.Event("logout", "failed")
		if errors.Is(err, auth.ErrMissingCredential) || errors.Is(err, auth.ErrInvalidToken) {
			Error(w, http.StatusBadRequest, CodeLogoutFailed, "refresh token and device id are required")
			return
		}
		h.log.Error("logout failed", slog.String("op", op), sl.Err(err))
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}

	h.metrics.Event("logout", "ok")
	h.clearRefreshCookie(w)
	OK(w, CodeLogoutSuccess, "logged out", nil)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, err := h.auth.VerifyAccess(r.Context(), accessTokenFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			Error(w, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingCredential):
			Error(w, http.StatusUnauthorized, CodeTokenInvalid, "access token is invalid")
		case errors.Is(err, auth.ErrUserBlocked):
			Error(w, http.StatusForbidden, CodeUserBlocked, "user is blocked")
		default:
			h.log.Error("verify failed", sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		}
		return
	}

	OK(w, CodeTokenValid, "token is valid", principal)
}

func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	sessions, err := h.auth.Devices(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("failed to list devices", sl.Err(err))
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}

	current := r.Header.Get(HeaderDeviceID)
	devices := make([]deviceResponse, 0, len(sessions))
	for _, s := range sessions {
		devices = append(devices, deviceResponse{
			DeviceID:  s.DeviceID,
			IP:        s.IP,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Current:   current != "" && s.DeviceID == current,
		})
	}

	OK(w, CodeOK, "devices", devices)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	user, err := h.users.UserByID(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			Error(w, http.StatusUnauthorized, CodeUnauthorized, "user no longer exists")
			return
		}
		h.log.Error("failed to load profile", sl.Err(err))
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}

	OK(w, CodeProfileSuccess, "profile", profileResponse{
		UserID:   user.UserID,
		Email:    user.Email,
		Nickname: user.Nickname,
		Role:     user.PrimaryRole(),
		Roles:    user.Roles,
	})
}

func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req blockRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return
	}
	if err := validation.Validate(req.DurationMinutes, validation.Required, validation.Min(1), validation.Max(525600)); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidRequest, "durationMinutes: "+err.Error())
		return
	}

	record, err := h.moderation.Block(r.Context(), userID, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrUserNotFound):
			Error(w, http.StatusNotFound, CodeUserNotFound, "user not found")
		case errors.Is(err, moderation.ErrInvalidDuration):
			Error(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		default:
			h.log.Error("failed to block user", sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		}
		return
	}

	h.metrics.Event("block", "ok")
	OK(w, CodeBlockApplied, "user blocked", record)
}

func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	if err := h.moderation.Unblock(r.Context(), chi.URLParam(r, "userId")); err != nil {
		h.log.Error("failed to unblock user", sl.Err(err))
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}

	h.metrics.Event("unblock", "ok")
	OK(w, CodeBlockLifted, "user unblocked", nil)
}

// BlockStatus reports the block in force for {userId}. Expired records read as not blocked.
func (h *Handler) BlockStatus(w http.ResponseWriter, r *http.Request) {
	record, err := h.moderation.Status(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.log.Error("failed to read block status", sl.Err(err))
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}

	resp := blockStatusResponse{}
	if record != nil {
		resp.Blocked = true
		resp.UnblockAt = &record.UnblockAt
		resp.DurationMinutes = record.DurationMinutes
	}

	OK(w, CodeBlockStatus, "block status", resp)
}

// SetUserActive returns the handler that switches the account of {userId} to active.
func (h *Handler) SetUserActive(active bool) http.HandlerFunc {
	code, msg := CodeUserActivated, "user activated"
	if !active {
		code, msg = CodeUserDeactivated, "user deactivated"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		err := h.moderation.SetActive(r.Context(), chi.URLParam(r, "userId"), active)
		if err != nil {
			if errors.Is(err, moderation.ErrUserNotFound) {
				Error(w, http.StatusNotFound, CodeUserNotFound, "user not found")
				return
			}
			h.log.Error("failed to change account state", sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
			return
		}

		OK(w, code, msg, nil)
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	OK(w, CodeOK, "ok", nil)
}
