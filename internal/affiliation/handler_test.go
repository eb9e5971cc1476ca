package affiliation_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffiliationCRUD(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	superAdmin := testutils.CreateTestUser(t, db, "super@test.com", "password", "super_admin")
	token := testutils.TokenFor(t, superAdmin)

	var id uint

	t.Run("Success - Create affiliation", func(t *testing.T) {
		body := map[string]interface{}{"code": " rsup ", "name": "RSUP Dr. Sardjito", "type": "residen"}
		resp, err := testutils.MakeRequest(app, "POST", "/affiliations", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 201, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "RSUP", data["code"])
		id = uint(data["id"].(float64))
	})

	t.Run("Error - Duplicate code", func(t *testing.T) {
		body := map[string]interface{}{"code": "RSUP", "name": "Other", "type": "residen"}
		resp, err := testutils.MakeRequest(app, "POST", "/affiliations", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 409, resp.Code)
		testutils.AssertError(t, resp, "CONFLICT")
	})

	t.Run("Error - Unknown type", func(t *testing.T) {
		body := map[string]interface{}{"code": "X1", "name": "Other", "type": "hospital"}
		resp, err := testutils.MakeRequest(app, "POST", "/affiliations", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})

	t.Run("Success - Update affiliation", func(t *testing.T) {
		body := map[string]interface{}{"code": "RSUP", "name": "Renamed", "type": "clinical_fellowship"}
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/affiliations/%d", id), body, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var stored models.Affiliation
		require.NoError(t, db.First(&stored, id).Error)
		assert.Equal(t, models.AffiliationClinicalFellowship, stored.Type)
	})

	t.Run("Error - Delete referenced affiliation", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Member{OrgType: "fellow", Name: "Ref", AffiliationID: &id, Status: "active"}).Error)

		resp, err := testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/affiliations/%d", id), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 409, resp.Code)
	})

	t.Run("Success - Delete unreferenced affiliation", func(t *testing.T) {
		require.NoError(t, db.Where("affiliation_id = ?", id).Delete(&models.Member{}).Error)

		resp, err := testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/affiliations/%d", id), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		resp, err = testutils.MakeRequest(app, "GET", fmt.Sprintf("/affiliations/%d", id), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})
}

func TestAffiliationScoping(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	affA := testutils.CreateTestAffiliation(t, db, "RSA", models.AffiliationResiden)
	affB := testutils.CreateTestAffiliation(t, db, "RSB", models.AffiliationResiden)

	kolegium := testutils.CreateTestUser(t, db, "kolegium@test.com", "password", "admin_kolegium")
	testutils.BindAffiliations(t, db, kolegium, affA)
	token := testutils.TokenFor(t, kolegium)

	unbound := testutils.CreateTestUser(t, db, "viewer@test.com", "password", "admin_study_program")
	unboundToken := testutils.TokenFor(t, unbound)

	t.Run("Success - Bound user lists only its affiliations", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/affiliations", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		items := result.Data.([]interface{})
		require.Len(t, items, 1)
		assert.Equal(t, "RSA", items[0].(map[string]interface{})["code"])
	})

	t.Run("Success - Unbound user lists the catalogue", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/affiliations", nil, unboundToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Len(t, result.Data, 2)
	})

	t.Run("Error - Create needs affiliation.create", func(t *testing.T) {
		body := map[string]interface{}{"code": "NEW", "name": "New", "type": "residen"}
		resp, err := testutils.MakeRequest(app, "POST", "/affiliations", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Error - Get affiliation outside bound set", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", fmt.Sprintf("/affiliations/%d", affB.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Success - Upsert profile sanitizes content", func(t *testing.T) {
		body := map[string]interface{}{
			"description":  "<p>About</p><script>x()</script>",
			"address":      "<b>Jl. Kesehatan</b>",
			"social_links": map[string]string{"instagram": "@rsa"},
		}
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/affiliations/%d/profile", affA.ID), body, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "<p>About</p>", data["description"])
		assert.Equal(t, "Jl. Kesehatan", data["address"])
		assert.Equal(t, "@rsa", data["social_links"].(map[string]interface{})["instagram"])
	})

	t.Run("Error - Upsert profile outside bound set", func(t *testing.T) {
		body := map[string]interface{}{"description": "x"}
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/affiliations/%d/profile", affB.ID), body, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Success - Upload logo", func(t *testing.T) {
		resp, err := testutils.MakeMultipartRequestWithFile(app, "POST", fmt.Sprintf("/affiliations/%d/profile/logo", affA.ID),
			nil, map[string][]byte{"logo": []byte("\x89PNG\r\n\x1a\nlogo")}, "image/png", token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		logo := result.Data.(map[string]interface{})["logo_url"].(string)
		assert.True(t, strings.HasPrefix(logo, "/uploads/logos/"))
	})

	t.Run("Success - Soft delete and restore profile", func(t *testing.T) {
		url := fmt.Sprintf("/affiliations/%d/profile", affA.ID)

		resp, err := testutils.MakeRequest(app, "DELETE", url, nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		resp, err = testutils.MakeRequest(app, "GET", url, nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)

		resp, err = testutils.MakeRequest(app, "PUT", url, map[string]interface{}{"vision": "Restored"}, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var count int64
		db.Unscoped().Model(&models.AffiliationProfile{}).Where("affiliation_id = ?", affA.ID).Count(&count)
		assert.Equal(t, int64(1), count)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "Restored", data["vision"])
		assert.NotEmpty(t, data["logo_url"])
	})
}
