package member_test

import (
	"fmt"
	"testing"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberHandlers(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	kol := testutils.CreateTestAffiliation(t, db, "KOL", models.AffiliationKolegium)
	rsA := testutils.CreateTestAffiliation(t, db, "RSA", models.AffiliationResiden)
	rsB := testutils.CreateTestAffiliation(t, db, "RSB", models.AffiliationResiden)

	kolegium := testutils.CreateTestUser(t, db, "kolegium@test.com", "password", "admin_kolegium")
	testutils.BindAffiliations(t, db, kolegium, kol)
	kolegiumToken := testutils.TokenFor(t, kolegium)

	resident := testutils.CreateTestUser(t, db, "resident@test.com", "password", "admin_study_program_resident")
	testutils.BindAffiliations(t, db, resident, rsA)
	residentToken := testutils.TokenFor(t, resident)

	t.Run("Success - Kolegium admin manages koti", func(t *testing.T) {
		body := map[string]interface{}{"name": "Dr. Koti", "email": "KOTI@test.com", "affiliation_id": kol.ID}
		resp, err := testutils.MakeRequest(app, "POST", "/database/koti", body, kolegiumToken)
		assert.NoError(t, err)
		assert.Equal(t, 201, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "koti", data["org_type"])
		assert.Equal(t, "koti@test.com", data["email"])
		assert.Equal(t, "active", data["status"])
	})

	t.Run("Error - Resident admin cannot touch koti", func(t *testing.T) {
		body := map[string]interface{}{"name": "Dr. Koti", "affiliation_id": rsA.ID}
		resp, err := testutils.MakeRequest(app, "POST", "/database/koti", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Success - Resident admin creates resident member", func(t *testing.T) {
		body := map[string]interface{}{"name": "Resident One", "registration_number": "R-001", "affiliation_id": rsA.ID}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 201, resp.Code)
	})

	t.Run("Error - Resident admin cannot create fellow member", func(t *testing.T) {
		body := map[string]interface{}{"name": "Fellow One", "affiliation_id": rsA.ID}
		resp, err := testutils.MakeRequest(app, "POST", "/database/fellow", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Error - Cross-section viewer stays within its affiliations", func(t *testing.T) {
		url := fmt.Sprintf("/database/resident?affiliation_id=%d", rsA.ID)
		resp, err := testutils.MakeRequest(app, "GET", url, nil, kolegiumToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Error - Unknown organization type", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/database/alumni", nil, kolegiumToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})

	t.Run("Error - Invalid status", func(t *testing.T) {
		body := map[string]interface{}{"name": "Resident Two", "status": "retired", "affiliation_id": rsA.ID}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})

	t.Run("Success - Import upserts on registration number", func(t *testing.T) {
		body := map[string]interface{}{
			"affiliation_id": rsA.ID,
			"members": []map[string]interface{}{
				{"name": "Resident One Renamed", "registration_number": "R-001"},
				{"name": "Resident Three", "registration_number": "R-003"},
				{"name": "Resident Four"},
			},
		}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident/import", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, float64(2), data["created"])
		assert.Equal(t, float64(1), data["updated"])

		var renamed models.Member
		require.NoError(t, db.Where("registration_number = ?", "R-001").First(&renamed).Error)
		assert.Equal(t, "Resident One Renamed", renamed.Name)
	})

	t.Run("Error - Import rejects the batch on an invalid row", func(t *testing.T) {
		body := map[string]interface{}{
			"affiliation_id": rsA.ID,
			"members": []map[string]interface{}{
				{"name": "Resident Five"},
				{"name": ""},
			},
		}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident/import", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var count int64
		db.Model(&models.Member{}).Where("name = ?", "Resident Five").Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Error - Import into another affiliation", func(t *testing.T) {
		body := map[string]interface{}{
			"affiliation_id": rsB.ID,
			"members":        []map[string]interface{}{{"name": "Intruder"}},
		}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident/import", body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Success - List is restricted to bound affiliations", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Member{OrgType: "resident", Name: "Other", AffiliationID: &rsB.ID, Status: "active"}).Error)

		resp, err := testutils.MakeRequest(app, "GET", "/database/resident", nil, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Len(t, result.Data, 3)
	})

	t.Run("Success - Update and delete own member", func(t *testing.T) {
		var m models.Member
		require.NoError(t, db.Where("registration_number = ?", "R-003").First(&m).Error)

		body := map[string]interface{}{"name": "Resident Three", "status": "alumni", "affiliation_id": rsA.ID}
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/database/resident/%d", m.ID), body, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		resp, err = testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/database/resident/%d", m.ID), nil, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)
	})

	t.Run("Error - Record under another org type is not found", func(t *testing.T) {
		var m models.Member
		require.NoError(t, db.Where("org_type = ?", "koti").First(&m).Error)

		resp, err := testutils.MakeRequest(app, "GET", fmt.Sprintf("/database/resident/%d", m.ID), nil, residentToken)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})
}

func TestMemberOrgTypeIsCanonical(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	rs := testutils.CreateTestAffiliation(t, db, "RS", models.AffiliationResiden)
	resident := testutils.CreateTestUser(t, db, "resident@test.com", "password", "admin_study_program_resident")
	testutils.BindAffiliations(t, db, resident, rs)
	token := testutils.TokenFor(t, resident)

	body := map[string]interface{}{"name": "Resident Upper", "registration_number": "R-900", "affiliation_id": rs.ID}
	resp, err := testutils.MakeRequest(app, "POST", "/database/Resident", body, token)
	require.NoError(t, err)
	require.Equal(t, 201, resp.Code)

	var stored models.Member
	require.NoError(t, db.Where("registration_number = ?", "R-900").First(&stored).Error)
	assert.Equal(t, "resident", stored.OrgType)

	t.Run("Success - Listed under the canonical token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", fmt.Sprintf("/database/resident?affiliation_id=%d", rs.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, int64(1), result.Meta.Total)
	})

	t.Run("Success - Reachable through any casing", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", fmt.Sprintf("/database/RESIDENT/%d", stored.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Zero affiliation", func(t *testing.T) {
		body := map[string]interface{}{"name": "Nowhere", "affiliation_id": 0}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})

	t.Run("Error - Import into an unknown affiliation", func(t *testing.T) {
		super := testutils.CreateTestUser(t, db, "super@test.com", "password", "super_admin")
		body := map[string]interface{}{
			"affiliation_id": 99999,
			"members":        []map[string]interface{}{{"name": "Ghost", "registration_number": "G-1"}},
		}
		resp, err := testutils.MakeRequest(app, "POST", "/database/resident/import", body, testutils.TokenFor(t, super))
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var n int64
		db.Model(&models.Member{}).Where("registration_number = ?", "G-1").Count(&n)
		assert.Zero(t, n)
	})
}
