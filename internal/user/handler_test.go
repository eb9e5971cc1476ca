package user_test

import (
	"fmt"
	"testing"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleID(t *testing.T, name string) uint {
	var r models.Role
	require.NoError(t, database.DB.Where("name = ?", name).First(&r).Error)
	return r.ID
}

func TestCreateUserHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	admin := testutils.CreateTestUser(t, db, "admin@test.com", "password", "super_admin")
	token := testutils.TokenFor(t, admin)
	aff := testutils.CreateTestAffiliation(t, db, "KOL", models.AffiliationKolegium)

	t.Run("Success - Create user with roles and affiliations", func(t *testing.T) {
		body := map[string]interface{}{
			"name":            "New User",
			"email":           "NewUser@test.com",
			"password":        "password123",
			"role_ids":        []uint{roleID(t, "admin_kolegium")},
			"affiliation_ids": []uint{aff.ID},
		}

		resp, err := testutils.MakeRequest(app, "POST", "/users", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 201, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "newuser@test.com", data["email"])
		assert.Nil(t, data["password"])
		assert.Len(t, data["roles"], 1)
		assert.Len(t, data["affiliations"], 1)
		assert.Equal(t, "admin_kolegium", data["primary_role"].(map[string]interface{})["name"])
	})

	t.Run("Error - Duplicate email", func(t *testing.T) {
		body := map[string]interface{}{
			"name":     "Duplicate",
			"email":    "newuser@test.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(app, "POST", "/users", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 409, resp.Code)
		testutils.AssertError(t, resp, "CONFLICT")
	})

	t.Run("Error - Missing required fields", func(t *testing.T) {
		body := map[string]interface{}{
			"email": "incomplete@test.com",
		}

		resp, err := testutils.MakeRequest(app, "POST", "/users", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})

	t.Run("Error - Unknown role id", func(t *testing.T) {
		body := map[string]interface{}{
			"name":     "Ghost",
			"email":    "ghost@test.com",
			"password": "password123",
			"role_ids": []uint{9999},
		}

		resp, err := testutils.MakeRequest(app, "POST", "/users", body, token)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})
}

func TestUserManagementPermissions(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	testutils.CreateTestRole(t, db, "user_manager", "user.*")
	manager := testutils.CreateTestUser(t, db, "manager@test.com", "password", "user_manager")
	kolegium := testutils.CreateTestUser(t, db, "kolegium@test.com", "password", "admin_kolegium")

	t.Run("Error - Role without user permissions", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/users", nil, testutils.TokenFor(t, kolegium))
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		testutils.AssertError(t, resp, "FORBIDDEN")
	})

	t.Run("Success - Prefix wildcard grants user management", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/users", nil, testutils.TokenFor(t, manager))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, int64(2), result.Meta.Total)
	})

	t.Run("Error - Cannot hand out an all-access role", func(t *testing.T) {
		body := map[string]interface{}{
			"name":     "Escalated",
			"email":    "escalated@test.com",
			"password": "password123",
			"role_ids": []uint{roleID(t, "super_admin")},
		}

		resp, err := testutils.MakeRequest(app, "POST", "/users", body, testutils.TokenFor(t, manager))
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		var n int64
		db.Model(&models.User{}).Where("email = ?", "escalated@test.com").Count(&n)
		assert.Zero(t, n)
	})

	t.Run("Error - Cannot give themselves an all-access role", func(t *testing.T) {
		superID := roleID(t, "super_admin")
		body := map[string]interface{}{"role_ids": []uint{superID}}

		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/roles", manager.ID), body, testutils.TokenFor(t, manager))
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		var links int64
		db.Table("user_roles").Where("user_id = ? AND role_id = ?", manager.ID, superID).Count(&links)
		assert.Zero(t, links)

		resp, err = testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d", manager.ID), map[string]interface{}{
			"primary_role_id": superID,
		}, testutils.TokenFor(t, manager))
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		db.Table("user_roles").Where("user_id = ? AND role_id = ?", manager.ID, superID).Count(&links)
		assert.Zero(t, links)
		var fresh models.User
		require.NoError(t, db.First(&fresh, manager.ID).Error)
		assert.NotEqual(t, superID, *fresh.PrimaryRoleID)
	})
}

func TestUserAffiliationScoping(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	a := testutils.CreateTestAffiliation(t, db, "RES-A", models.AffiliationResiden)
	b := testutils.CreateTestAffiliation(t, db, "RES-B", models.AffiliationResiden)

	testutils.CreateTestRole(t, db, "resident_user_manager", "agenda.study_program.resident.create", "user.edit", "user.create", "user.delete")
	bound := testutils.CreateTestUser(t, db, "bound@test.com", "password", "resident_user_manager")
	testutils.BindAffiliations(t, db, bound, a)
	token := testutils.TokenFor(t, bound)

	other := testutils.CreateTestUser(t, db, "other@test.com", "password", "admin_peer_group")
	testutils.BindAffiliations(t, db, other, b)

	links := func(userID uint) []uint {
		var ids []uint
		db.Table("user_affiliations").Where("user_id = ?", userID).Order("affiliation_id").Pluck("affiliation_id", &ids)
		return ids
	}

	createAgenda := func(affiliationID uint) int {
		resp, err := testutils.MakeRequest(app, "POST", "/agenda", map[string]interface{}{
			"affiliation_id": affiliationID,
			"scope":          "study_program",
			"section":        "resident",
			"title":          "Journal club",
			"starts_at":      "2026-03-01T09:00:00Z",
		}, token)
		require.NoError(t, err)
		return resp.Code
	}

	t.Run("Error - Cannot unbind themselves", func(t *testing.T) {
		assert.Equal(t, 403, createAgenda(b.ID))

		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/affiliations", bound.ID), map[string]interface{}{
			"affiliation_ids": []uint{},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		assert.Equal(t, []uint{a.ID}, links(bound.ID))

		resp, err = testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d", bound.ID), map[string]interface{}{
			"affiliation_ids": []uint{},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		assert.Equal(t, []uint{a.ID}, links(bound.ID))

		assert.Equal(t, 403, createAgenda(b.ID))
	})

	t.Run("Error - Cannot assign outside their set", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/affiliations", bound.ID), map[string]interface{}{
			"affiliation_ids": []uint{a.ID, b.ID},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		assert.Equal(t, []uint{a.ID}, links(bound.ID))
	})

	t.Run("Error - Cannot manage users bound elsewhere", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d", other.ID), map[string]interface{}{
			"password": "taken-over",
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		resp, err = testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/users/%d", other.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		assert.Equal(t, []uint{b.ID}, links(other.ID))
	})

	t.Run("Error - Cannot create an unbound user", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/users", map[string]interface{}{
			"name":     "Loose",
			"email":    "loose@test.com",
			"password": "password123",
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		var n int64
		db.Model(&models.User{}).Where("email = ?", "loose@test.com").Count(&n)
		assert.Zero(t, n)
	})

	t.Run("Success - Creates users inside their set", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "POST", "/users", map[string]interface{}{
			"name":            "Resident Staff",
			"email":           "staff@test.com",
			"password":        "password123",
			"affiliation_ids": []uint{a.ID},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 201, resp.Code)
	})
}

func TestListUsersHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	admin := testutils.CreateTestUser(t, db, "admin@test.com", "password", "super_admin")
	token := testutils.TokenFor(t, admin)
	for i := 0; i < 5; i++ {
		testutils.CreateTestUser(t, db, fmt.Sprintf("peer%d@test.com", i), "password", "admin_peer_group")
	}

	t.Run("Success - Pagination", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/users?page=2&limit=2", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Len(t, result.Data, 2)
		assert.Equal(t, int64(6), result.Meta.Total)
		assert.Equal(t, int64(3), result.Meta.TotalPages)
	})

	t.Run("Success - Filter by role", func(t *testing.T) {
		url := fmt.Sprintf("/users?role_id=%d", roleID(t, "admin_peer_group"))
		resp, err := testutils.MakeRequest(app, "GET", url, nil, token)
		assert.NoError(t, err)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, int64(5), result.Meta.Total)
	})

	t.Run("Success - Search", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", "/users?search=PEER3", nil, token)
		assert.NoError(t, err)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, int64(1), result.Meta.Total)
	})
}

func TestUpdateAndAssign(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	admin := testutils.CreateTestUser(t, db, "admin@test.com", "password", "super_admin")
	token := testutils.TokenFor(t, admin)
	target := testutils.CreateTestUser(t, db, "target@test.com", "password", "admin_peer_group")
	a := testutils.CreateTestAffiliation(t, db, "A", models.AffiliationPeerGroup)
	b := testutils.CreateTestAffiliation(t, db, "B", models.AffiliationPeerGroup)

	t.Run("Success - Update profile", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d", target.ID), map[string]interface{}{
			"name":   "Renamed",
			"status": "inactive",
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "Renamed", data["name"])
		assert.Equal(t, "inactive", data["status"])
	})

	t.Run("Error - Invalid status", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d", target.ID), map[string]interface{}{
			"status": "banned",
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
	})

	t.Run("Success - Replace roles moves primary role", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/roles", target.ID), map[string]interface{}{
			"role_ids": []uint{roleID(t, "admin_study_program")},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Len(t, data["roles"], 1)
		assert.Equal(t, "admin_study_program", data["primary_role"].(map[string]interface{})["name"])
	})

	t.Run("Success - Replace affiliations", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/affiliations", target.ID), map[string]interface{}{
			"affiliation_ids": []uint{a.ID, b.ID},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var links int64
		db.Table("user_affiliations").Where("user_id = ?", target.ID).Count(&links)
		assert.Equal(t, int64(2), links)

		resp, err = testutils.MakeRequest(app, "PUT", fmt.Sprintf("/users/%d/affiliations", target.ID), map[string]interface{}{
			"affiliation_ids": []uint{},
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		db.Table("user_affiliations").Where("user_id = ?", target.ID).Count(&links)
		assert.Zero(t, links)
	})
}

func TestDeleteUserHandler(t *testing.T) {
	app := testutils.SetupTestApp(t)
	db := database.DB

	admin := testutils.CreateTestUser(t, db, "admin@test.com", "password", "super_admin")
	token := testutils.TokenFor(t, admin)
	target := testutils.CreateTestUser(t, db, "target@test.com", "password", "admin_peer_group")

	t.Run("Error - Cannot delete self", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/users/%d", admin.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Success - Soft delete", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "DELETE", fmt.Sprintf("/users/%d", target.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		var count int64
		db.Unscoped().Model(&models.User{}).Where("id = ?", target.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Error - Deleted user is gone", func(t *testing.T) {
		resp, err := testutils.MakeRequest(app, "GET", fmt.Sprintf("/users/%d", target.ID), nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})
}
