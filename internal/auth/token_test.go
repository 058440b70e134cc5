package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 24*time.Hour)

	tokenString, err := tm.GenerateAccessToken("user-1", "u@x.com")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "u@x.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 24*time.Hour)
	other := NewTokenManager("other-secret-32-characters-long", 15*time.Minute, 24*time.Hour)

	tokenString, err := tm.GenerateAccessToken("user-1", "u@x.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 24*time.Hour)

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)
}
