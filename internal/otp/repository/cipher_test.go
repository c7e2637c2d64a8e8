package repository

import (
	"testing"

	"github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher("secret")
	require.NoError(t, err)

	a, err := c.Encrypt("12345678")
	require.NoError(t, err)
	b, err := c.Encrypt("12345678")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "12345678")

	plain, err := c.Decrypt(a)
	require.NoError(t, err)
	assert.Equal(t, "12345678", plain)
}

func TestTokenCipherRejectsForeignKey(t *testing.T) {
	c1, err := NewTokenCipher("one")
	require.NoError(t, err)
	c2, err := NewTokenCipher("two")
	require.NoError(t, err)

	sealed, err := c1.Encrypt("00000000")
	require.NoError(t, err)

	_, err = c2.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = c2.Decrypt("not base64 !!")
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = c2.Decrypt("")
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestNewTokenCipherRequiresSecret(t *testing.T) {
	_, err := NewTokenCipher("  ")
	assert.ErrorIs(t, err, domain.ErrCipherKey)
}
