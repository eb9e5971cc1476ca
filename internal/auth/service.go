package auth

import (
	"errors"
	"fmt"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is not active")
)

type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

// IssueTokens signs a fresh access token and stores a new refresh token.
func IssueTokens(user *models.User) (*TokenPair, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.DisplayRole())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(utils.AccessTokenTTL.Seconds()),
		User:         user,
	}, nil
}

func LoginUser(email, password string) (*TokenPair, error) {
	var user models.User
	if err := database.DB.Preload("PrimaryRole").Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Password == "" || !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status != "active" {
		return nil, ErrInactiveUser
	}

	return IssueTokens(&user)
}
