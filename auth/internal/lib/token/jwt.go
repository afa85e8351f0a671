package token

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nodove/auth/internal/domain/models"
)

var pasetoHeader = regexp.MustCompile(`^v[1-4]\.(local|public)\.`)

type jwtFormat struct {
	accessKey  []byte
	refreshKey []byte
}

func newJWTFormat(accessSecret, refreshSecret string) *jwtFormat {
	return &jwtFormat{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
	}
}

func (f *jwtFormat) key(kind models.TokenKind) []byte {
	if kind == models.RefreshToken {
		return f.refreshKey
	}
	return f.accessKey
}

func (f *jwtFormat) sign(kind models.TokenKind, c *claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(f.key(kind))
}

func (f *jwtFormat) parse(tok string, kind models.TokenKind, now time.Time, skew time.Duration, dst *claims) error {
	if pasetoHeader.MatchString(tok) {
		return newError(KindUnsupportedFormat, errors.New("paseto token presented to jwt codec"))
	}

	_, err := jwt.ParseWithClaims(tok, dst, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return f.key(kind), nil
	},
		jwt.WithLeeway(skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithSubject(kind.String()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return classifyJWTError(err)
	}

	return nil
}

// classifyJWTError maps golang-jwt sentinel errors onto ErrorKind. Expired is checked
// first because ErrTokenInvalidClaims wraps it.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindUnsupportedFormat, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return newError(KindMalformed, err)
	default:
		return newError(KindUnknown, err)
	}
}
