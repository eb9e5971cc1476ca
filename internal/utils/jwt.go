package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test_secret_key_minimum_32_characters_long_for_testing_only"

const (
	AccessTokenTTL = 15 * time.Minute
	tokenIssuer    = "kolegium"
)

var jwtKey []byte

func init() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = testSecret
	}
	jwtKey = []byte(secret)
}

// SetJWTSecret replaces the signing key loaded at init.
func SetJWTSecret(secret string) {
	if secret != "" {
		jwtKey = []byte(secret)
	}
}

func ValidateJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long (current: %d)", len(secret))
	}

	if secret == testSecret {
		return fmt.Errorf("cannot use default test secret in production")
	}

	return nil
}

// AccessClaims is the payload of an access token. Role is the user's
// display role and carries no authorization weight; permissions are always
// recomputed from the database.
type AccessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func GenerateJWT(userID uint, roleName string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: roleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ParseAccessToken verifies signature, algorithm, issuer and expiry.
func ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return jwtKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseJWT returns the user id of a valid access token.
func ParseJWT(tokenStr string) (uint, error) {
	claims, err := ParseAccessToken(tokenStr)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}

func (c *AccessClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid token subject %q", c.Subject)
	}
	return uint(id), nil
}
