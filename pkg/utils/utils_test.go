package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	enc, err := Encrypt([]byte("EAAG-access-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotContains(t, enc, "EAAG")

	dec, err := Decrypt(enc, []byte(testKey))
	require.NoError(t, err)
	assert.Equal(t, "EAAG-access-token", dec)
}

func TestDecryptRejectsBadInput(t *testing.T) {
	enc, err := Encrypt([]byte("secret"), []byte(testKey))
	require.NoError(t, err)

	_, err = Decrypt(enc, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("AAAA", []byte(testKey))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Decrypt("not base64!", []byte(testKey))
	assert.Error(t, err)

	_, err = Encrypt([]byte("secret"), []byte("short"))
	assert.Error(t, err)
}

func TestGenerateRandomKey(t *testing.T) {
	a, err := GenerateRandomKey(24)
	require.NoError(t, err)
	b, err := GenerateRandomKey(24)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testKey, "operator-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.OperatorID)
	assert.Equal(t, "postflow", claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	expired, err := GenerateToken(testKey, "operator-1", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testKey, expired)
	assert.Error(t, err)

	token, err := GenerateToken(testKey, "operator-1", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken("another-key", token)
	assert.Error(t, err)
}

func TestValidateTokenRequiresOperator(t *testing.T) {
	token, err := GenerateToken(testKey, "", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(testKey, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
