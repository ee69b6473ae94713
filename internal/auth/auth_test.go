package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, err := mgr.Generate("user-123", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)

	token, err := mgr.Generate("user-123", "alice@example.com")
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := mgr.Generate("user-123", "alice@example.com")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	_, err := mgr.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong password"), ErrWrongPassword)
}

func TestHashPassword_RejectsShortPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
