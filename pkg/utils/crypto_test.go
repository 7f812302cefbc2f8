package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundtrip(t *testing.T) {
	encrypted, err := Encrypt([]byte("act.example.token"), testKey)
	require.NoError(t, err)
	assert.NotEqual(t, "act.example.token", encrypted)

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, "act.example.token", decrypted)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	first, err := Encrypt([]byte("same plaintext"), testKey)
	require.NoError(t, err)

	second, err := Encrypt([]byte("same plaintext"), testKey)
	require.NoError(t, err)

	// A random nonce per call means identical inputs never collide.
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret"), testKey)
	require.NoError(t, err)

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	_, err = Decrypt(encrypted, otherKey)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("tiny"))

	_, err := Decrypt(short, testKey)
	assert.Error(t, err)
}

func TestDecryptRejectsInvalidBase64(t *testing.T) {
	_, err := Decrypt("not-base64!!!", testKey)
	assert.Error(t, err)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("secret"), []byte("short"))
	assert.Error(t, err)
}
