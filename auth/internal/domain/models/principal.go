package models

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Roles    []Role `json:"roles"`
	Nickname string `json:"userNick,omitempty"`
}

// NewPrincipal builds a Principal from verified access claims.
func NewPrincipal(c *AccessClaims) *Principal {
	roles := make([]Role, len(c.Roles))
	copy(roles, c.Roles)
	return &Principal{
		UserID:   c.UserID,
		Email:    c.Email,
		Roles:    roles,
		Nickname: c.Nickname,
	}
}

// HasAnyRole reports whether the principal holds one of the roles.
func (p *Principal) HasAnyRole(want ...Role) bool {
	if p == nil {
		return false
	}
	return HasAnyRole(p.Roles, want...)
}

// LoginEvent is one entry of the login history.
type LoginEvent struct {
	UserID    string `json:"userId"`
	DeviceID  string `json:"deviceId"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Success   bool   `json:"success"`
	At        int64  `json:"at"`
}
