package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)

	access, refresh, err := svc.GenerateTokens(42)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	accessClaims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, 42, accessClaims.UserID)
	assert.False(t, accessClaims.IsRefreshToken)
	assert.NotEmpty(t, accessClaims.ID, "jti используется как идентификатор сессии")

	refreshClaims, err := svc.ValidateToken(refresh)
	require.NoError(t, err)
	assert.True(t, refreshClaims.IsRefreshToken)

	// У каждого токена своя сессия.
	assert.NotEqual(t, accessClaims.ID, refreshClaims.ID)
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)

	t.Run("чужой ключ подписи", func(t *testing.T) {
		other := NewJWTService("other-secret", time.Minute, time.Hour)
		access, _, err := other.GenerateTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.Error(t, err)
	})

	t.Run("просроченный токен", func(t *testing.T) {
		expired := NewJWTService("test-secret", -time.Minute, time.Hour)
		access, _, err := expired.GenerateTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.Error(t, err)
	})

	t.Run("мусор вместо токена", func(t *testing.T) {
		claims, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}
