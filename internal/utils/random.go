package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
)

const RefreshTokenTTL = 7 * 24 * time.Hour

func GenerateRefreshToken(userID uint) (string, error) {
	rawToken := RandomString(64)

	rt := models.RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(rawToken),
		ExpiresAt: time.Now().Add(RefreshTokenTTL),
	}

	if err := database.DB.Create(&rt).Error; err != nil {
		return "", err
	}

	return rawToken, nil
}

// ValidateRefreshToken consumes the token: a valid token is revoked in the
// same statement so it can only be exchanged once.
func ValidateRefreshToken(userID uint, token string) bool {
	result := database.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash = ? AND revoked = ? AND expires_at > ?", userID, HashToken(token), false, time.Now()).
		Update("revoked", true)

	return result.Error == nil && result.RowsAffected == 1
}

func RevokeRefreshTokens(userID uint) error {
	return database.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// CleanupRefreshTokens hard-deletes expired or revoked tokens.
func CleanupRefreshTokens() (int64, error) {
	result := database.DB.Unscoped().
		Where("expires_at < ? OR revoked = ?", time.Now(), true).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

func RefreshTokenPair(userID uint, oldToken string) (string, string, error) {
	if !ValidateRefreshToken(userID, oldToken) {
		return "", "", fmt.Errorf("invalid or expired refresh token")
	}

	var user models.User
	if err := database.DB.Preload("PrimaryRole").Preload("Roles").First(&user, userID).Error; err != nil {
		return "", "", fmt.Errorf("user not found")
	}
	if user.Status != "active" {
		return "", "", fmt.Errorf("user is not active")
	}

	accessToken, err := GenerateJWT(user.ID, user.DisplayRole())
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %v", err)
	}

	newRefreshToken, err := GenerateRefreshToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %v", err)
	}

	return accessToken, newRefreshToken, nil
}

func RandomString(length int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		result[i] = chars[num.Int64()]
	}
	return string(result)
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
