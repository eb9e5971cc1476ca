package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/role"
	"github.com/Kyz7/kolegium/internal/server"
	"github.com/Kyz7/kolegium/internal/storage"
	"github.com/Kyz7/kolegium/internal/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to create test database")

	// Each pooled connection would open its own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.Models()...), "Failed to migrate test database")
	return db
}

// SetupTestApp wires a fresh in-memory database with the default roles
// seeded, local storage in a temp dir and rate limiting off.
func SetupTestApp(t *testing.T) *fiber.App {
	db := TestDB(t)
	database.DB = db

	require.NoError(t, role.SeedDefaultRoles(db), "Failed to seed roles")

	uploads := t.TempDir()
	require.NoError(t, storage.InitLocalStorage(uploads), "Failed to initialize storage")

	return server.New(db, server.Options{UploadDir: uploads})
}

// CreateTestRole creates an active custom role holding permissions.
func CreateTestRole(t *testing.T, db *gorm.DB, name string, permissions ...string) *models.Role {
	r, err := role.CreateRole(db, role.RoleInput{Name: name, Permissions: &permissions})
	require.NoError(t, err, "Failed to create role %s", name)
	return r
}

// CreateTestUser creates an active local user holding roleNames. The first
// role becomes the primary role.
func CreateTestUser(t *testing.T, db *gorm.DB, email, password string, roleNames ...string) *models.User {
	hashedPassword, _ := utils.HashPassword(password)

	var roles []models.Role
	for _, name := range roleNames {
		var r models.Role
		if err := db.Where("name = ?", name).First(&r).Error; err != nil {
			t.Fatalf("Failed to find role '%s': %v. Make sure roles were seeded.", name, err)
		}
		roles = append(roles, r)
	}

	user := &models.User{
		Name:     "Test User",
		Email:    email,
		Password: hashedPassword,
		Provider: "local",
		Status:   "active",
		Roles:    roles,
	}
	if len(roles) > 0 {
		user.PrimaryRoleID = &roles[0].ID
	}

	err := db.Omit("Roles.*").Create(user).Error
	require.NoError(t, err, "Failed to create test user")

	db.Preload("PrimaryRole").Preload("Roles.Permissions").Preload("Affiliations").First(user, user.ID)
	return user
}

func CreateTestAffiliation(t *testing.T, db *gorm.DB, code string, kind models.AffiliationType) *models.Affiliation {
	a := &models.Affiliation{Code: code, Name: "Affiliation " + code, Type: kind}
	require.NoError(t, db.Create(a).Error, "Failed to create affiliation")
	return a
}

// BindAffiliations adds affiliations to the user's bound set.
func BindAffiliations(t *testing.T, db *gorm.DB, user *models.User, affiliations ...*models.Affiliation) {
	for _, a := range affiliations {
		require.NoError(t, db.Model(user).Association("Affiliations").Append(a))
	}
}

func GetAuthToken(t *testing.T, userID uint, roleName string) string {
	token, err := utils.GenerateJWT(userID, roleName)
	assert.NoError(t, err, "Failed to generate test token")
	return token
}

// TokenFor is GetAuthToken for a user created by CreateTestUser.
func TokenFor(t *testing.T, user *models.User) string {
	return GetAuthToken(t, user.ID, user.DisplayRole())
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return do(app, req)
}

func do(app *fiber.App, req *http.Request) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()

	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}

	rec.Code = resp.StatusCode
	for k, v := range resp.Header {
		for _, val := range v {
			rec.Header().Add(k, val)
		}
	}

	io.Copy(rec.Body, resp.Body)
	resp.Body.Close()

	return rec, nil
}

func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return
	}

	err := json.NewDecoder(resp.Body).Decode(v)
	if err != nil && err != io.EOF {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
}

type StandardResponse struct {
	Success bool         `json:"success"`
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data"`
	Error   *ErrorDetail `json:"error"`
	Meta    *Meta        `json:"meta"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.True(t, result.Success, "Expected success response")
	assert.Empty(t, result.Error, "Expected no error")
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, expectedCode string) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.False(t, result.Success, "Expected error response")
	assert.Equal(t, "error", result.Status)
	if assert.NotNil(t, result.Error, "Expected error object") {
		assert.Equal(t, expectedCode, result.Error.Code, "Error code mismatch")
	}
}

// MakeMultipartRequestWithFile sends fields plus one file per entry in
// files, each part tagged with contentType.
func MakeMultipartRequestWithFile(app *fiber.App, method, url string, fields map[string]string, files map[string][]byte, contentType, token string) (*httptest.ResponseRecorder, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, val := range fields {
		writer.WriteField(key, val)
	}

	for fieldName, fileContent := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s.png"`, fieldName, fieldName))
		h.Set("Content-Type", contentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, err
		}
		part.Write(fileContent)
	}

	formType := writer.FormDataContentType()
	writer.Close()

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", formType)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return do(app, req)
}

func MakeRedirectRequest(app *fiber.App, method, url string, token string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, url, nil)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return do(app, req)
}
