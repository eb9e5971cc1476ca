package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Kyz7/kolegium/internal/config"
	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var googleOauthConfig = &oauth2.Config{
	RedirectURL: "http://localhost:8080/auth/google/callback",
	Scopes:      []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
	Endpoint:    google.Endpoint,
}

// ConfigureGoogle loads OAuth client credentials from cfg.
func ConfigureGoogle(cfg *config.Config) {
	googleOauthConfig.ClientID = cfg.GoogleClientID
	googleOauthConfig.ClientSecret = cfg.GoogleClientSecret
	if cfg.GoogleRedirectURL != "" {
		googleOauthConfig.RedirectURL = cfg.GoogleRedirectURL
	}
}

var (
	stateStore = make(map[string]time.Time)
	stateMutex sync.Mutex
)

func generateState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

func storeState(state string) {
	stateMutex.Lock()
	defer stateMutex.Unlock()

	now := time.Now()
	stateStore[state] = now.Add(5 * time.Minute)
	for k, v := range stateStore {
		if now.After(v) {
			delete(stateStore, k)
		}
	}
}

func validateState(state string) bool {
	stateMutex.Lock()
	defer stateMutex.Unlock()

	expiry, exists := stateStore[state]
	if !exists || time.Now().After(expiry) {
		return false
	}
	delete(stateStore, state)
	return true
}

type googleUser struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	VerifiedEmail bool   `json:"verified_email"`
}

func fetchGoogleUser(ctx context.Context, code string) (*googleUser, error) {
	token, err := googleOauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := googleOauthConfig.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("user info has no email")
	}
	return &u, nil
}

func GoogleLogin(c *fiber.Ctx) error {
	state := generateState()
	storeState(state)
	return c.Redirect(googleOauthConfig.AuthCodeURL(state))
}

// GoogleCallback signs in an existing account by its Google email. Accounts
// are provisioned by administrators, so unknown emails are refused.
func GoogleCallback(c *fiber.Ctx) error {
	if !validateState(c.Query("state")) {
		return response.BadRequest(c, "Invalid state parameter", nil)
	}

	gu, err := fetchGoogleUser(c.UserContext(), c.Query("code"))
	if err != nil {
		obs.Log.WithError(err).Warn("google sign-in failed")
		return response.InternalError(c, "Failed to complete Google sign-in")
	}
	if !gu.VerifiedEmail {
		return response.Forbidden(c, "Google account email is not verified")
	}

	var u models.User
	if err := database.DB.Preload("PrimaryRole").Preload("Roles").Where("email = ?", gu.Email).First(&u).Error; err != nil {
		return response.Forbidden(c, "No account is registered for this email")
	}
	if u.Status != "active" {
		return response.Forbidden(c, "User is not active")
	}

	if u.Provider == "" {
		database.DB.Model(&u).Update("provider", "google")
	}

	pair, err := IssueTokens(&u)
	if err != nil {
		return response.InternalError(c, "Failed to issue tokens")
	}

	return response.Success(c, pair, "Login successful")
}
