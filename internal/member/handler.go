package member

import (
	"errors"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type importRequest struct {
	AffiliationID *uint   `json:"affiliation_id"`
	Members       []Input `json:"members"`
}

func writeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrMemberNotFound) {
		return response.NotFound(c, "Member")
	}
	return response.FromError(c, err)
}

// orgType is the canonical :org_type token; rows are stored and queried
// under it.
func orgType(c *fiber.Ctx) string {
	return permission.CanonicalOrgType(c.Params("org_type"))
}

func orgTarget(c *fiber.Ctx, action permission.Action) (permission.Target, error) {
	return permission.OrgTypeTarget(permission.FamilyDatabase, orgType(c), action)
}

func loadAuthorized(c *fiber.Ctx, action permission.Action) (*models.Member, error) {
	t, err := orgTarget(c, action)
	if err != nil {
		return nil, response.FromError(c, err)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, response.BadRequest(c, "Invalid member ID", nil)
	}

	m, err := Get(database.DB, orgType(c), uint(id))
	if err != nil {
		return nil, writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{Target: t, AffiliationID: m.AffiliationID})
	if !d.Allowed {
		return nil, middleware.Deny(c, d)
	}
	return m, nil
}

func ListMembersHandler(c *fiber.Ctx) error {
	t, err := orgTarget(c, permission.ActionView)
	if err != nil {
		return response.FromError(c, err)
	}
	affiliationID, err := middleware.AffiliationParam(c, "affiliation_id")
	if err != nil {
		return response.FromError(c, err)
	}

	req := permission.Request{Target: t, AffiliationID: affiliationID, Collection: true}
	d := middleware.Authorize(c, req)
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	page, limit, offset := response.PageParams(c)
	items, total, err := List(database.DB, ListFilter{
		OrgType: orgType(c),
		Status:  c.Query("status"),
		Search:  c.Query("search"),
		Offset:  offset,
		Limit:   limit,
	}, func(q *gorm.DB) *gorm.DB {
		return middleware.FilterAffiliations(q, req, d)
	})
	if err != nil {
		return response.InternalError(c, "Failed to fetch members")
	}

	return response.SuccessWithMeta(c, items, response.CalculateMeta(page, limit, total), "Members retrieved successfully")
}

func GetMemberHandler(c *fiber.Ctx) error {
	m, err := loadAuthorized(c, permission.ActionView)
	if m == nil {
		return err
	}
	return response.Success(c, m, "Member retrieved successfully")
}

func CreateMemberHandler(c *fiber.Ctx) error {
	t, err := orgTarget(c, permission.ActionCreate)
	if err != nil {
		return response.FromError(c, err)
	}

	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{Target: t, AffiliationID: body.AffiliationID})
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	m, err := Create(database.DB, orgType(c), body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, m, "Member created successfully")
}

func UpdateMemberHandler(c *fiber.Ctx) error {
	m, err := loadAuthorized(c, permission.ActionEdit)
	if m == nil {
		return err
	}

	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	if !sameAffiliation(body.AffiliationID, m.AffiliationID) {
		t, _ := orgTarget(c, permission.ActionEdit)
		d := middleware.Authorize(c, permission.Request{Target: t, AffiliationID: body.AffiliationID})
		if !d.Allowed {
			return middleware.Deny(c, d)
		}
	}

	updated, err := Update(database.DB, m, body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, updated, "Member updated successfully")
}

func DeleteMemberHandler(c *fiber.Ctx) error {
	m, err := loadAuthorized(c, permission.ActionDelete)
	if m == nil {
		return err
	}

	if err := Delete(database.DB, m); err != nil {
		return response.InternalError(c, "Failed to delete member")
	}
	return response.NoContent(c)
}

// ImportMembersHandler bulk-loads members from a JSON body into one
// affiliation.
func ImportMembersHandler(c *fiber.Ctx) error {
	t, err := orgTarget(c, permission.ActionImport)
	if err != nil {
		return response.FromError(c, err)
	}

	var body importRequest
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{Target: t, AffiliationID: body.AffiliationID})
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	result, err := Import(database.DB, orgType(c), body.AffiliationID, body.Members)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, result, "Members imported successfully")
}

func sameAffiliation(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
