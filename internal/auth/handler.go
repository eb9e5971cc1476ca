package auth

import (
	"errors"
	"sort"

	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/Kyz7/kolegium/internal/utils"
	"github.com/gofiber/fiber/v2"
)

func LoginHandler(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.Email == "" || body.Password == "" {
		return response.ValidationError(c, map[string]string{
			"email":    "email is required",
			"password": "password is required",
		})
	}

	pair, err := LoginUser(body.Email, body.Password)
	if errors.Is(err, ErrInactiveUser) {
		return response.Unauthorized(c, "User is not active")
	}
	if err != nil {
		return response.Unauthorized(c, "Invalid email or password")
	}

	return response.Success(c, pair, "Login successful")
}

func RefreshHandler(c *fiber.Ctx) error {
	var body struct {
		UserID       uint   `json:"user_id"`
		RefreshToken string `json:"refresh_token"`
	}

	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.UserID == 0 || body.RefreshToken == "" {
		return response.ValidationError(c, map[string]string{
			"user_id":       "user_id is required",
			"refresh_token": "refresh_token is required",
		})
	}

	accessToken, newRefreshToken, err := utils.RefreshTokenPair(body.UserID, body.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, err.Error())
	}

	return response.Success(c, TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int(utils.AccessTokenTTL.Seconds()),
	}, "Token refreshed successfully")
}

// LogoutHandler revokes every outstanding refresh token of the caller.
func LogoutHandler(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	if err := utils.RevokeRefreshTokens(userID); err != nil {
		return response.InternalError(c, "Failed to revoke tokens")
	}
	obs.Log.WithField("user_id", userID).Info("user logged out")

	return response.Success(c, fiber.Map{"user_id": userID}, "Logout successful")
}

type roleView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	AllAccess       bool   `json:"all_access"`
	ViewAllSections bool   `json:"view_all_sections"`
}

// MeHandler reports the caller's roles, effective permissions and bound
// affiliations. Inactive roles are listed but contribute no permissions.
func MeHandler(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	user, err := middleware.LoadUser(userID)
	if err != nil {
		return response.Unauthorized(c, "User not found")
	}

	subject := middleware.SubjectFromUser(user)

	roles := make([]roleView, 0, len(user.Roles))
	seen := map[string]bool{}
	var permissions []string
	for _, r := range user.Roles {
		roles = append(roles, roleView{
			ID:              r.ID,
			Name:            r.Name,
			IsActive:        r.IsActive,
			AllAccess:       r.AllAccess,
			ViewAllSections: r.ViewAllSections,
		})
		if !r.IsActive {
			continue
		}
		for _, name := range r.PermissionNames() {
			if !seen[name] {
				seen[name] = true
				permissions = append(permissions, name)
			}
		}
	}
	sort.Strings(permissions)

	affiliations := user.Affiliations
	if affiliations == nil {
		affiliations = []models.Affiliation{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	return response.Success(c, fiber.Map{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"display_role": user.DisplayRole(),
		"roles":        roles,
		"permissions":  permissions,
		"all_access":   subject.HasAllAccess(),
		"affiliations": affiliations,
	}, "Profile retrieved successfully")
}
