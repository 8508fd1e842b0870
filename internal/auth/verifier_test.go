package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, userID int, username string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	token := signToken(t, "s3cret", 42, "alice", time.Now().Add(time.Hour))

	identity, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, 42, identity.ID)
	require.Equal(t, "alice", identity.Username)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	token := signToken(t, "other", 42, "alice", time.Now().Add(time.Hour))

	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	token := signToken(t, "s3cret", 42, "alice", time.Now().Add(-time.Hour))

	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyGarbage(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")

	_, err := verifier.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingUserID(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	token := signToken(t, "s3cret", 0, "alice", time.Now().Add(time.Hour))

	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
