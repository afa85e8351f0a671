package models

import (
	"fmt"
	"time"
)

// ProviderLocal is the provider name for email/password logins.
const ProviderLocal = "LOCAL"

// SessionKey addresses one device session of one user.
type SessionKey struct {
	Provider string
	UserID   string
	DeviceID string
}

// String renders the storage key, e.g. LOCAL_REFRESH_42_7f3c.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s_REFRESH_%s_%s", k.Provider, k.UserID, k.DeviceID)
}

// Session is the token material recorded for a device.
// RefreshToken is the capability checked on reissue; AccessToken is the last access
// token handed to the device.
type Session struct {
	UserID       string
	DeviceID     string
	RefreshToken string
	AccessToken  string
	IP           string
	UserAgent    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
