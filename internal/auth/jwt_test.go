package auth

import (
	"testing"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret")
	user := &models.User{
		ID:            "user-1",
		Email:         "jwt@test.com",
		EmailVerified: true,
		IsStaff:       false,
	}

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := tm.GenerateToken(user, time.Minute)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "jwt@test.com", claims.Email)
		assert.True(t, claims.EmailVerified)
		assert.False(t, claims.IsStaff)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := tm.GenerateToken(user, -time.Minute)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredAccessToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := tm.GenerateToken(user, time.Minute)
		require.NoError(t, err)

		other := NewTokenManager("different-secret")
		_, err = other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})
}
