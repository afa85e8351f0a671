package models

import "time"

// TokenKind tells the access and refresh credentials apart.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	default:
		return "unknown"
	}
}

// AccessClaims is the decoded payload of an access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Roles     []Role
	Nickname  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims is the decoded payload of a refresh token.
type RefreshClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims holds exactly one of Access or Refresh, selected by Kind.
type Claims struct {
	Kind    TokenKind
	Access  *AccessClaims
	Refresh *RefreshClaims
}

// UserID returns the subject user regardless of the variant.
func (c *Claims) UserID() string {
	switch c.Kind {
	case AccessToken:
		if c.Access != nil {
			return c.Access.UserID
		}
	case RefreshToken:
		if c.Refresh != nil {
			return c.Refresh.UserID
		}
	}
	return ""
}

// TokenPair is what login and reissue hand back to the transport.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	DeviceID     string
}
