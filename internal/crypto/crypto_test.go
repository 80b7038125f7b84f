package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAesGcmRoundTrip(t *testing.T) {
	c, err := NewAesGcm(testKey)
	require.NoError(t, err)

	plaintext := "c_user=100012345678901; xs=secret-token"
	sealed, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)
	assert.NotContains(t, sealed, "secret-token")

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestAesGcmNonceUniqueness(t *testing.T) {
	c, err := NewAesGcm(testKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same input")
	require.NoError(t, err)
	b, err := c.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAesGcmRejectsBadKeys(t *testing.T) {
	_, err := NewAesGcm("")
	assert.Error(t, err)

	_, err = NewAesGcm("abcd")
	assert.Error(t, err)

	_, err = NewAesGcm(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestAesGcmDecryptRejectsGarbage(t *testing.T) {
	c, err := NewAesGcm(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt("not-hex")
	assert.Error(t, err)

	_, err = c.Decrypt("deadbeef")
	assert.Error(t, err)
}

func TestAesGcmDecryptRejectsTampering(t *testing.T) {
	c, err := NewAesGcm(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("payload")
	require.NoError(t, err)

	tampered := []byte(sealed)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	_, err = c.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestNoopPassthrough(t *testing.T) {
	var c Cipher = Noop{}

	sealed, err := c.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := c.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", opened)
}
