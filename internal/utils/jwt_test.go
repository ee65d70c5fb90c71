package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	tokenStr, err := SignJWT("test-secret", "user-123", "freelancer", 60)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	claims, err := ParseJWT("test-secret", tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "freelancer", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestParseJWTWrongSecret(t *testing.T) {
	tokenStr, err := SignJWT("secret-a", "user-123", "client", 60)
	require.NoError(t, err)

	_, err = ParseJWT("secret-b", tokenStr)
	assert.Error(t, err)
}

func TestParseJWTExpired(t *testing.T) {
	tokenStr, err := SignJWT("test-secret", "user-123", "client", -1)
	require.NoError(t, err)

	_, err = ParseJWT("test-secret", tokenStr)
	assert.Error(t, err)
}

func TestParseJWTGarbage(t *testing.T) {
	_, err := ParseJWT("test-secret", "not-a-token")
	assert.Error(t, err)
}
