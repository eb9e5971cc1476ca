package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "admin_kolegium")
	require.NoError(t, err)

	id, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin_kolegium", claims.Role)
	assert.Equal(t, "kolegium", claims.Issuer)

	_, err = ParseJWT(token + "x")
	assert.Error(t, err)
}

func TestParseJWTRejectsForeignTokens(t *testing.T) {
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := foreign.SignedString(jwtKey)
	require.NoError(t, err)
	_, err = ParseJWT(signed)
	assert.Error(t, err, "wrong issuer")

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: "42"})
	signed, err = noExpiry.SignedString(jwtKey)
	require.NoError(t, err)
	_, err = ParseJWT(signed)
	assert.Error(t, err, "missing expiry")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, err = expired.SignedString(jwtKey)
	require.NoError(t, err)
	_, err = ParseJWT(signed)
	assert.Error(t, err, "expired")
}

func TestValidateJWTSecret(t *testing.T) {
	assert.Error(t, ValidateJWTSecret(""))
	assert.Error(t, ValidateJWTSecret("short"))
	assert.Error(t, ValidateJWTSecret(testSecret))
	assert.NoError(t, ValidateJWTSecret("a-production-secret-that-is-long-enough-123"))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPasswordHash("s3cret!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestRandomString(t *testing.T) {
	a, b := RandomString(32), RandomString(32)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
}
