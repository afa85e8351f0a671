package http_auth

import (
	"net/http"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"nodove/auth/internal/domain/models"
	"nodove/auth/pkg/utils"
)

const (
	RefreshCookie      = "refreshToken"
	HeaderDeviceID     = "Device-Id"
	HeaderRefreshToken = "Refresh-Token"
	HeaderAuthorize    = "Authorization"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// CookieConfig shapes the refresh token cookie.
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// writeTokens emits the transport artifacts shared by login and reissue.
func (h *Handler) writeTokens(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set(HeaderAuthorize, utils.BearerPrefix+pair.AccessToken)
	w.Header().Set(HeaderRefreshToken, utils.BearerPrefix+pair.RefreshToken)
	w.Header().Set(HeaderDeviceID, pair.DeviceID)
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshTokenFrom(r *http.Request) string {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func accessTokenFrom(r *http.Request) string {
	tok, ok := utils.BearerToken(r.Header.Get(HeaderAuthorize))
	if !ok {
		return ""
	}
	return tok
}

func validateDeviceID(id string) error {
	return validation.Validate(id,
		validation.Length(1, 128),
		validation.Match(deviceIDPattern),
	)
}

func clientInfo(r *http.Request) models.ClientInfo {
	return models.ClientInfo{
		DeviceID:  r.Header.Get(HeaderDeviceID),
		IP:        utils.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
