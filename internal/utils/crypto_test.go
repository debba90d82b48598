package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialCipherRoundTrip(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)

	sealed, err := c.Encrypt("hunter2@example.com")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2@example.com", plain)
}

func TestCredentialCipherHexKey(t *testing.T) {
	_, err := NewCredentialCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)
}

func TestCredentialCipherBadKey(t *testing.T) {
	_, err := NewCredentialCipher("short")
	assert.Error(t, err)
}

func TestCredentialCipherTamperedCiphertext(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)

	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	_, err = c.Decrypt("AAAA" + sealed[4:])
	assert.Error(t, err)
}
