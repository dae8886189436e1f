package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_EncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox("a-secret-value-of-any-length")
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("oauth-refresh-token-xyz")
	require.NoError(t, err)
	assert.NotEqual(t, "oauth-refresh-token-xyz", ciphertext)

	plaintext, err := box.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "oauth-refresh-token-xyz", plaintext)
}

func TestNewBox_EmptySecretRejected(t *testing.T) {
	_, err := NewBox("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBox_DecryptInvalidCiphertext(t *testing.T) {
	box, err := NewBox("secret")
	require.NoError(t, err)

	_, err = box.Decrypt("not-valid-base64-or-gcm")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestBox_DifferentSecretsProduceDifferentKeys(t *testing.T) {
	box1, _ := NewBox("secret-one")
	box2, _ := NewBox("secret-two")

	ciphertext, err := box1.Encrypt("hello")
	require.NoError(t, err)

	_, err = box2.Decrypt(ciphertext)
	assert.Error(t, err)
}
