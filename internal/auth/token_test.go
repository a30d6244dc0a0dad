package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestParseSession(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"userId":   float64(42),
		"username": "hoang",
		"email":    "hoang@example.com",
		"roles":    []string{"CUSTOMER"},
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	sess, err := ParseSession(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.UserID)
	assert.Equal(t, "hoang", sess.Username)
	assert.Equal(t, []string{"CUSTOMER"}, sess.Roles)
	assert.Equal(t, token, sess.Token)
}

func TestParseSessionUserIDFallbacks(t *testing.T) {
	t.Run("id claim", func(t *testing.T) {
		sess, err := ParseSession(signToken(t, jwt.MapClaims{"id": float64(7)}))
		require.NoError(t, err)
		assert.Equal(t, int64(7), sess.UserID)
	})

	t.Run("numeric sub", func(t *testing.T) {
		sess, err := ParseSession(signToken(t, jwt.MapClaims{"sub": "9"}))
		require.NoError(t, err)
		assert.Equal(t, int64(9), sess.UserID)
	})

	t.Run("no user id at all", func(t *testing.T) {
		_, err := ParseSession(signToken(t, jwt.MapClaims{"sub": "hoang"}))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestParseSessionExpired(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"userId": float64(42),
		"exp":    time.Now().Add(-time.Minute).Unix(),
	})

	_, err := ParseSession(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseSessionGarbage(t *testing.T) {
	_, err := ParseSession("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseSession("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
