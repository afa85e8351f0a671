package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nodove/auth/internal/domain/models"
)

// DefaultClockSkew is how far past exp a token is still accepted.
const DefaultClockSkew = 60 * time.Second

// Format selects the wire format of issued tokens.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatPaseto Format = "paseto"
)

// Options configures a Codec. Access and refresh secrets must differ.
type Options struct {
	Format        Format
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ClockSkew     time.Duration
}

// Option tweaks a Codec after construction.
type Option func(*Codec)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// claims is the payload shared by both wire formats.
//
//	access:  { sub:"access",  role:[string], userId, email, userNick?, iat, exp }
//	refresh: { sub:"refresh", userId, iat, exp }
type claims struct {
	Role     []models.Role `json:"role,omitempty"`
	UserID   string        `json:"userId"`
	Email    string        `json:"email,omitempty"`
	UserNick string        `json:"userNick,omitempty"`
	jwt.RegisteredClaims
}

type wireFormat interface {
	sign(kind models.TokenKind, c *claims) (string, error)
	// parse authenticates tok and fills dst. Returned errors are *Error.
	parse(tok string, kind models.TokenKind, now time.Time, skew time.Duration, dst *claims) error
}

// Codec signs and verifies access and refresh tokens. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	format     wireFormat
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
	now        func() time.Time
}

// New builds a Codec from opts.
func New(opts Options, optFns ...Option) (*Codec, error) {
	const op = "token.New"

	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return nil, fmt.Errorf("%s: access and refresh secrets are required", op)
	}
	if opts.AccessSecret == opts.RefreshSecret {
		return nil, fmt.Errorf("%s: access and refresh secrets must differ", op)
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: token TTLs must be positive", op)
	}

	c := &Codec{
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		skew:       opts.ClockSkew,
		now:        time.Now,
	}
	if c.skew == 0 {
		c.skew = DefaultClockSkew
	}

	switch opts.Format {
	case FormatJWT, "":
		c.format = newJWTFormat(opts.AccessSecret, opts.RefreshSecret)
	case FormatPaseto:
		f, err := newPasetoFormat(opts.AccessSecret, opts.RefreshSecret)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.format = f
	default:
		return nil, fmt.Errorf("%s: unknown token format %q", op, opts.Format)
	}

	for _, fn := range optFns {
		fn(c)
	}

	return c, nil
}

// AccessTTL is the validity window of access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the validity window of refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess mints an access token. An empty nickname leaves the claim out.
func (c *Codec) IssueAccess(roles []models.Role, userID, email, nickname string) (string, error) {
	if userID == "" {
		return "", newError(KindInvalidArgument, errors.New("user id is empty"))
	}
	if len(roles) == 0 {
		return "", newError(KindInvalidArgument, errors.New("at least one role is required"))
	}

	now := c.now()
	cl := &claims{
		Role:     roles,
		UserID:   userID,
		Email:    email,
		UserNick: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.AccessToken.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}

	return c.sign(models.AccessToken, cl)
}

// IssueRefresh mints a refresh token.
func (c *Codec) IssueRefresh(userID string) (string, error) {
	if userID == "" {
		return "", newError(KindInvalidArgument, errors.New("user id is empty"))
	}

	now := c.now()
	cl := &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.RefreshToken.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}

	return c.sign(models.RefreshToken, cl)
}

func (c *Codec) sign(kind models.TokenKind, cl *claims) (string, error) {
	tok, err := c.format.sign(kind, cl)
	if err != nil {
		return "", newError(KindUnknown, fmt.Errorf("failed to sign %s token: %w", kind, err))
	}
	return tok, nil
}

// Verify authenticates tok with the key for kind and decodes its claims.
func (c *Codec) Verify(tok string, kind models.TokenKind) (*models.Claims, error) {
	if tok == "" {
		return nil, newError(KindInvalidArgument, errors.New("token is empty"))
	}
	if kind != models.AccessToken && kind != models.RefreshToken {
		return nil, newError(KindInvalidArgument, fmt.Errorf("unknown token kind %d", int(kind)))
	}

	var cl claims
	if err := c.format.parse(tok, kind, c.now(), c.skew, &cl); err != nil {
		return nil, err
	}

	if cl.UserID == "" {
		return nil, newError(KindMalformed, errors.New("missing userId claim"))
	}

	out := &models.Claims{Kind: kind}
	switch kind {
	case models.AccessToken:
		if len(cl.Role) == 0 {
			return nil, newError(KindMalformed, errors.New("missing role claim"))
		}
		out.Access = &models.AccessClaims{
			UserID:    cl.UserID,
			Email:     cl.Email,
			Roles:     cl.Role,
			Nickname:  cl.UserNick,
			IssuedAt:  numericTime(cl.IssuedAt),
			ExpiresAt: numericTime(cl.ExpiresAt),
		}
	case models.RefreshToken:
		out.Refresh = &models.RefreshClaims{
			UserID:    cl.UserID,
			IssuedAt:  numericTime(cl.IssuedAt),
			ExpiresAt: numericTime(cl.ExpiresAt),
		}
	}

	return out, nil
}

// IsExpired reports true only when tok is authentic but past its expiry.
// Any other failure is returned as an error, never as false.
func (c *Codec) IsExpired(tok string, kind models.TokenKind) (bool, error) {
	_, err := c.Verify(tok, kind)
	if err == nil {
		return false, nil
	}
	if KindOf(err) == KindExpired {
		return true, nil
	}
	return false, err
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
