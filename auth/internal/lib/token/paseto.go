package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/o1egl/paseto"
	"golang.org/x/crypto/hkdf"

	"nodove/auth/internal/domain/models"
)

const (
	pasetoLocalHeader = "v2.local."
	pasetoKeySize     = 32
)

// pasetoFormat issues v2.local tokens. The symmetric keys are derived from the
// configured secrets so both formats share one configuration.
type pasetoFormat struct {
	v2         *paseto.V2
	accessKey  []byte
	refreshKey []byte
}

func newPasetoFormat(accessSecret, refreshSecret string) (*pasetoFormat, error) {
	accessKey, err := deriveKey(accessSecret, models.AccessToken)
	if err != nil {
		return nil, err
	}
	refreshKey, err := deriveKey(refreshSecret, models.RefreshToken)
	if err != nil {
		return nil, err
	}

	return &pasetoFormat{
		v2:         paseto.NewV2(),
		accessKey:  accessKey,
		refreshKey: refreshKey,
	}, nil
}

func deriveKey(secret string, kind models.TokenKind) ([]byte, error) {
	key := make([]byte, pasetoKeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("nodove paseto "+kind.String()))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", kind, err)
	}
	return key, nil
}

func (f *pasetoFormat) key(kind models.TokenKind) []byte {
	if kind == models.RefreshToken {
		return f.refreshKey
	}
	return f.accessKey
}

func (f *pasetoFormat) sign(kind models.TokenKind, c *claims) (string, error) {
	return f.v2.Encrypt(f.key(kind), c, nil)
}

func (f *pasetoFormat) parse(tok string, kind models.TokenKind, now time.Time, skew time.Duration, dst *claims) error {
	if !strings.HasPrefix(tok, pasetoLocalHeader) {
		return newError(KindUnsupportedFormat, errors.New("token is not a v2.local paseto"))
	}

	if err := f.v2.Decrypt(tok, f.key(kind), dst, nil); err != nil {
		return newError(KindMalformed, err)
	}

	if dst.Subject != kind.String() {
		return newError(KindMalformed, fmt.Errorf("subject %q, want %q", dst.Subject, kind))
	}
	if dst.ExpiresAt == nil {
		return newError(KindMalformed, errors.New("missing exp claim"))
	}
	if dst.IssuedAt != nil && dst.IssuedAt.After(now.Add(skew)) {
		return newError(KindMalformed, errors.New("token used before issued"))
	}
	if !now.Before(dst.ExpiresAt.Add(skew)) {
		return newError(KindExpired, fmt.Errorf("token expired at %s", dst.ExpiresAt.UTC().Format(time.RFC3339)))
	}

	return nil
}
