package password

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	pass := gofakeit.Password(true, true, true, true, false, 16)

	hash, err := Hash(pass)
	require.NoError(t, err)
	assert.NotEqual(t, pass, hash)

	v := Verifier{}
	assert.NoError(t, v.Verify(hash, pass))
	assert.ErrorIs(t, v.Verify(hash, pass+"x"), ErrMismatch)
}

func TestVerify_BadHash(t *testing.T) {
	err := Verifier{}.Verify("not-a-hash", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
