package auth_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)

	testutils.CreateTestUser(t, database.DB, "test@example.com", "password123", "admin_kolegium")

	t.Run("Success - Valid credentials", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "test@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(app, "POST", "/auth/login", body, "")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.True(t, result.Success)
		assert.Equal(t, "success", result.Status)

		data := result.Data.(map[string]interface{})
		assert.NotEmpty(t, data["access_token"])
		assert.NotEmpty(t, data["refresh_token"])
		assert.Equal(t, float64(900), data["expires_in"])
	})

	t.Run("Error - Wrong password", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "test@example.com",
			"password": "wrong",
		}

		resp, err := testutils.MakeRequest(app, "POST", "/auth/login", body, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Unknown email", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "nobody@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(app, "POST", "/auth/login", body, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Missing fields", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/login", map[string]interface{}{"email": "test@example.com"}, "")
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})

	t.Run("Error - Suspended user", func(t *testing.T) {
		u := testutils.CreateTestUser(t, database.DB, "suspended@example.com", "password123", "admin_kolegium")
		database.DB.Model(u).Update("status", "suspended")

		body := map[string]interface{}{
			"email":    "suspended@example.com",
			"password": "password123",
		}
		resp, err := testutils.MakeRequest(app, "POST", "/auth/login", body, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})
}

func TestRefreshHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, database.DB, "refresh@example.com", "password123", "admin_peer_group")

	resp, err := testutils.MakeRequest(app, "POST", "/auth/login", map[string]interface{}{
		"email":    "refresh@example.com",
		"password": "password123",
	}, "")
	require.NoError(t, err)
	var result testutils.StandardResponse
	testutils.ParseResponse(t, resp, &result)
	refreshToken := result.Data.(map[string]interface{})["refresh_token"].(string)

	t.Run("Success - Rotates the refresh token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/refresh", map[string]interface{}{
			"user_id":       user.ID,
			"refresh_token": refreshToken,
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.NotEmpty(t, data["access_token"])
		assert.NotEqual(t, refreshToken, data["refresh_token"])
	})

	t.Run("Error - Refresh token cannot be reused", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/refresh", map[string]interface{}{
			"user_id":       user.ID,
			"refresh_token": refreshToken,
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Missing fields", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/refresh", map[string]interface{}{}, "")
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, database.DB, "logout@example.com", "password123", "admin_peer_group")
	token := testutils.TokenFor(t, user)

	database.DB.Create(&models.RefreshToken{UserID: user.ID, TokenHash: "h1", ExpiresAt: user.CreatedAt.AddDate(1, 0, 0)})

	t.Run("Success - Revokes refresh tokens", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/logout", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var live int64
		database.DB.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", user.ID, false).Count(&live)
		assert.Zero(t, live)
	})

	t.Run("Error - Missing token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/logout", nil, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Invalid token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/auth/logout", nil, "not-a-jwt")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "INVALID_TOKEN")
	})

	t.Run("Error - Not a bearer token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})
}

func TestMeHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)

	aff := testutils.CreateTestAffiliation(t, database.DB, "RES-UI", models.AffiliationResiden)
	user := testutils.CreateTestUser(t, database.DB, "me@example.com", "password123", "admin_study_program_resident")
	testutils.BindAffiliations(t, database.DB, user, aff)

	resp, err := testutils.MakeRequest(app, "GET", "/auth/me", nil, testutils.TokenFor(t, user))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)

	var result testutils.StandardResponse
	testutils.ParseResponse(t, resp, &result)
	data := result.Data.(map[string]interface{})

	assert.Equal(t, "me@example.com", data["email"])
	assert.Equal(t, "admin_study_program_resident", data["display_role"])
	assert.Equal(t, false, data["all_access"])

	perms := data["permissions"].([]interface{})
	assert.Contains(t, perms, "agenda.study_program.resident.*")
	assert.Contains(t, perms, "affiliation.view")

	affs := data["affiliations"].([]interface{})
	require.Len(t, affs, 1)
	assert.Equal(t, "RES-UI", affs[0].(map[string]interface{})["code"])
}

func TestGoogleLogin(t *testing.T) {
	app := testutils.SetupTestApp(t)

	t.Run("Success - Redirects to Google", func(t *testing.T) {
		resp, err := testutils.MakeRedirectRequest(app, "GET", "/auth/google/login", "")
		assert.NoError(t, err)
		assert.Equal(t, 302, resp.Code)

		location := resp.Header().Get("Location")
		assert.True(t, strings.HasPrefix(location, "https://accounts.google.com/"))
		assert.Contains(t, location, "state=")
	})

	t.Run("Error - Callback with unknown state", func(t *testing.T) {
		resp, err := testutils.MakeRedirectRequest(app, "GET", "/auth/google/callback?state=forged&code=x", "")
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})
}
